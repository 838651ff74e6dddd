// Package kudos provides a peer-recognition ledger for Go applications.
//
// Kudos is designed as a library, not a service. Members of a group spend a
// limited monthly allotment of grants to recognize each other; every grant
// is an immutable record in an append-only store, and every view (remaining
// allowance, received history, leaderboard) is derived from that store on
// demand. It provides:
//
//   - Monthly allotments per sender and group, reset at each calendar month
//   - Ordered admissibility checks: self grant, recipient eligibility, quota
//   - Received summaries and per-group leaderboards for the current month
//   - Memory, SQLite, PostgreSQL and MongoDB stores behind one interface
//   - Post-commit plugins for notifications, metrics and audit trails
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/kudos"
//	    "github.com/xraph/kudos/store/memory"
//	)
//
//	l := kudos.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	res, err := l.Give(ctx, kudos.Input{
//	    SenderID:    "u1",
//	    RecipientID: "u2",
//	    GroupID:     "g1",
//	    Message:     kudos.Provided("Great work"),
//	}, true)
//	switch {
//	case kudos.IsRejection(err):
//	    // tell the sender why
//	case err != nil:
//	    return err
//	}
//	fmt.Println(res.Remaining) // 9
//
// # Validate and Record
//
// Callers that need to interleave their own steps can run the two halves
// separately. Validate and RecordGrant are independent store round trips,
// so two concurrent senders may overshoot the limit by one. Give holds a
// per-(sender, group) lock across both and is exact within one process.
//
//	if err := l.Validate(ctx, in.Candidate(eligible)); err != nil {
//	    return err
//	}
//	g, err := l.RecordGrant(ctx, in)
//
// # Periods
//
// A period is the calendar month containing the ledger clock's current
// instant, resolved in the ledger's location (time.Local unless WithLocation
// is given). Quotas and reports consider only grants created at or after the
// period start.
//
// # TypeID
//
// Grants use TypeID identifiers:
//
//	grant_01h2xcejqtf2nbrexx3vqjhp41
package kudos
