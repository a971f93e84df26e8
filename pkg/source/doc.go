// Package source reads recipient records for a campaign.
//
// A [Source] yields [Record] values in ingestion order and reports its offset, the number of
// rows consumed so far. Next returns io.EOF once the source is exhausted:
//
//	for {
//	    rec, err := src.Next(ctx)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    // materialize rec as recipient number src.Offset()-1
//	}
//
// # Restarting
//
// Sources are restartable: an [Opener] reopens a reference at a saved offset, which is how a
// paused or crashed campaign resumes materializing recipients without duplicating any.
// Openers that cannot seek use [Skip] to consume the leading records. Opening past the end
// fails with [ErrInvalidOffset].
//
// # CSV
//
// CSV is the upload format. The header row names the columns; an email column is required,
// a name column (or first_name and last_name) is optional, and every other column becomes
// a template variable in column order. Spreadsheet exports with a UTF-8 or UTF-16 byte
// order mark are decoded transparently:
//
//	src, err := source.NewCSV(strings.NewReader("email,name,company\nada@example.com,Ada,Acme\n"))
//
// # References
//
// References are URIs dispatched by scheme through a [Mux]:
//
//	mem://newsletter-2026   in-memory lists, used by tests and form capture
//	s3://uploads/list.csv   CSV objects in S3-compatible storage
//
// Register an opener per scheme:
//
//	lists := source.NewMemory()
//	mux := source.NewMux()
//	mux.Handle(source.SchemeMemory, lists)
//	mux.Handle(source.SchemeS3, source.NewObjectOpener(objects))
//
//	ref := lists.Put("beta-testers", records) // "mem://beta-testers"
//	src, err := mux.Open(ctx, ref, 0)
//
// [ObjectRef] builds the reference of an uploaded object key.
//
// # Errors
//
//   - [ErrMissingEmailColumn]: the CSV header has no email column
//   - [ErrUnknownScheme]: no opener is registered for the reference scheme
//   - [ErrNotFound]: the reference does not exist
//   - [ErrInvalidOffset]: the offset is beyond the end of the source
package source
