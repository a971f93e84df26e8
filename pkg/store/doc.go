// Package store persists campaigns, recipients, delivery attempts and templates.
//
// # Contracts
//
// [Store] is the durable checkpoint of campaign progress and [TemplateStore] holds message
// templates by ID. Two implementations satisfy both:
//
//   - [Memory]: maps guarded by a mutex, for tests and single-process runs
//   - [Postgres]: pgx on a pgxpool.Pool, with goose migrations embedded in [Migrations]
//
// # Consistency
//
// [Store.RecordAttempt] writes the attempt, the recipient's new status and the campaign's
// counters as one unit, so a crash between them cannot leave counters that disagree with
// recipient statuses. [Store.AddRecipients] likewise saves the ingestion offset together with
// the recipients, and skips rows whose (campaign, seq) already exist, so re-ingesting after a
// crash never duplicates a recipient.
//
// # Postgres
//
// Run the embedded migrations before opening the store:
//
//	pool, err := db.Connect(ctx, cfg.DB)
//	if err := db.Migrate(ctx, pool, store.Migrations(), cfg.DB.MigrationsTable, log); err != nil {
//	    return err
//	}
//	s := store.NewPostgres(pool)
//
// # Attempt Log
//
// [Store.ListAttempts] pages through a campaign's attempts newest first. A zero limit uses
// [DefaultAttemptLimit] and larger limits are capped at [MaxAttemptLimit]:
//
//	page, err := s.ListAttempts(ctx, store.AttemptQuery{CampaignID: id, Limit: 100})
//
// # Errors
//
//   - [ErrUnavailable]: the database is unreachable; the dispatcher pauses the campaign
//   - [ErrDuplicate]: CreateCampaign with an existing ID
//   - [ErrInvalidQuery]: an attempt query without a campaign or with a negative page
//
// Missing records are reported with campaign.ErrNotFound and template.ErrNotFound.
package store
