// Package mailcast is a bulk email campaign engine.
//
// A campaign sends one template to every recipient of a list. The engine ingests the list,
// validates the template against every recipient before anything is sent, then dispatches
// through a bounded worker pool that respects each provider's rate budget. Failed sends are
// classified as transient or permanent; transient ones are retried with exponential backoff,
// optionally on another provider. Every status change is checkpointed, so a restarted
// process resumes Running campaigns where they stopped.
//
// # Quick Start
//
//	providers, _ := mailer.NewSet(mailer.ModeSingle, "log",
//	    mailer.NewLogProvider("log", ratelimit.Budget{Capacity: 10, Refill: 10, Per: time.Second}, log),
//	)
//	mem := store.NewMemory()
//	lists := source.NewMemory()
//
//	eng, err := mailcast.New(cfg,
//	    mailcast.WithStore(mem),
//	    mailcast.WithTemplates(mem),
//	    mailcast.WithSources(lists),
//	    mailcast.WithProviders(providers),
//	    mailcast.WithLogger(log),
//	)
//	if err != nil {
//	    return err
//	}
//
//	c, _ := eng.Create(ctx, mailcast.CreateRequest{TemplateID: "welcome", SourceRef: ref})
//	_, err = eng.Start(ctx, c.ID)
//
// # Lifecycle
//
// Campaigns move Draft -> Running -> Completed, with Paused, Cancelled and Failed on the
// side. Pause and Cancel wait for in-flight sends to finish. Start, Pause, Resume and Cancel
// are idempotent when the campaign is already in the requested state.
//
// # Scheduled starts and recovery
//
// Scheduled starts and the periodic recovery sweep run on the River job queue:
//
//	jobs, err := job.NewManager(pool, eng.Tasks()...)
//	eng.SetScheduler(jobs)
//
// # HTTP API
//
// [NewHandler] exposes campaigns, templates, progress and attempt history as JSON over chi.
// [Run] serves it with graceful shutdown:
//
//	err := mailcast.Run(eng, mailcast.NewHandler(eng), mailcast.Address(":8080"))
package mailcast
