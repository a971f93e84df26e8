// Package campaign defines the data model shared by the dispatch engine and its collaborators:
// campaigns, recipient records, delivery attempts, and the status transitions between them.
//
// The package has no behavior beyond bookkeeping. Persistence lives in the store package and
// dispatch in the engine.
//
// # Statuses
//
// Campaign status moves Draft -> Running -> {Paused <-> Running} -> {Completed, Cancelled, Failed}.
// A Draft may also be cancelled directly. Terminal states never change:
//
//	c := campaign.New("spring-sale", "promo", ref, campaign.Options{Shuffle: true}, time.Now())
//	if err := c.SetStatus(campaign.StatusRunning, time.Now()); err != nil {
//	    // errors.Is(err, campaign.ErrInvalidTransition)
//	}
//
// [Campaign.SetStatus] also stamps StartedAt on the first start and FinishedAt on a terminal
// status.
//
// Recipient status moves Pending -> Sending -> {Sent, Retrying, Failed}, Retrying -> Sending,
// and any non-terminal status -> Cancelled. [RecipientStatus.IsDispatchable] reports whether a
// recipient may still be handed to a worker.
//
// # Counters
//
// Every campaign tracks Total, Sent, Failed and Pending. Pending is everything that has not
// reached Sent or Failed, including recipients that were Cancelled. The invariant
//
//	Sent + Failed + Pending == Total
//
// holds at every observation point because counters only move through [Counters.Apply].
//
// # Attempts and Events
//
// Each send try produces an immutable [Attempt] carrying its [Outcome]: [Success], [Transient]
// or [Permanent]. Every recipient status change produces an [Event], which drives live progress
// and the analytics stream.
//
// # Variables
//
// [Variables] keeps template values in the column order of the source row and survives a JSON
// round trip in that order:
//
//	vars := campaign.Variables{}.Set("company", "Acme").Set("plan", "pro")
//	company, ok := vars.Get("company")
package campaign
