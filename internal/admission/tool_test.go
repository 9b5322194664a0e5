package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/lab-access-control/internal/model"
	"github.com/iliyamo/lab-access-control/internal/policy"
	"github.com/iliyamo/lab-access-control/internal/repository"
)

func TestEnableToolEnergizesBeforeOpeningEvent(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.EnableTool(context.Background(), toolID, memberID, memberID, projectID)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if res.Event.ToolID != toolID || res.Event.OperatorID != memberID || res.Event.UserID != memberID {
		t.Fatalf("event = %+v", res.Event)
	}
	if res.Event.End != nil {
		t.Fatal("fresh usage event must be open")
	}
	got := f.locker.issued()
	if len(got) != 1 || got[0] != "unlock:31" {
		t.Fatalf("commands = %v, want the tool interlock energized", got)
	}
}

func TestEnableToolInactiveUserDenied(t *testing.T) {
	f := newFixture(t)
	u := f.users.byID[memberID]
	u.IsActive = false
	f.users.byID[memberID] = u

	_, err := f.svc.EnableTool(context.Background(), toolID, memberID, memberID, projectID)
	var d *policy.Denial
	if !errors.As(err, &d) || d.Reason != policy.ReasonInactiveUser {
		t.Fatalf("expected inactive-user denial, got %v", err)
	}
	if len(f.locker.issued()) != 0 {
		t.Fatal("inactive user must not energize the interlock")
	}
	if _, err := f.usage.CurrentForTool(context.Background(), toolID); !errors.Is(err, repository.ErrToolNotInUse) {
		t.Fatal("inactive user must not open a usage event")
	}
}

func TestEnableToolOutsideRequiredAreaNotifies(t *testing.T) {
	f := newFixture(t)
	tool := f.tools.byID[toolID]
	tool.RequiresAreaAccess = u64(cleanroomID)
	f.tools.byID[toolID] = tool

	// Member is not logged in to the cleanroom.
	_, err := f.svc.EnableTool(context.Background(), toolID, memberID, memberID, projectID)
	var d *policy.Denial
	if !errors.As(err, &d) || d.Reason != policy.ReasonAreaAccessRequired {
		t.Fatalf("expected area-presence denial, got %v", err)
	}
	if len(f.locker.issued()) != 0 {
		t.Fatal("denied enable must not energize the interlock")
	}
	if len(f.notifier.denied) != 1 || f.notifier.denied[0].ID != toolID {
		t.Fatalf("denied notifications = %+v, want one for the tool", f.notifier.denied)
	}
}

func TestEnableToolRoutineDenialsDoNotNotify(t *testing.T) {
	f := newFixture(t)
	u := f.users.byID[memberID]
	u.QualifiedToolIDs = nil
	f.users.byID[memberID] = u

	_, err := f.svc.EnableTool(context.Background(), toolID, memberID, memberID, projectID)
	var d *policy.Denial
	if !errors.As(err, &d) || d.Reason != policy.ReasonNotQualified {
		t.Fatalf("expected qualification denial, got %v", err)
	}
	if len(f.notifier.denied) != 0 {
		t.Fatalf("qualification denial must not page staff, got %+v", f.notifier.denied)
	}
}

func TestEnableToolHardwareFaultOpensNoEvent(t *testing.T) {
	f := newFixture(t)
	f.locker.err = errTestHardware

	_, err := f.svc.EnableTool(context.Background(), toolID, memberID, memberID, projectID)
	if err == nil {
		t.Fatal("expected hardware error to surface")
	}
	if _, err := f.usage.CurrentForTool(context.Background(), toolID); !errors.Is(err, repository.ErrToolNotInUse) {
		t.Fatal("an event must never exist for a tool that stayed powered down")
	}
}

func TestEnableToolAlreadyInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.EnableTool(ctx, toolID, memberID, memberID, projectID); err != nil {
		t.Fatalf("enable: %v", err)
	}
	_, err := f.svc.EnableTool(ctx, toolID, staffID, staffID, projectID)
	var d *policy.Denial
	if !errors.As(err, &d) || d.Reason != policy.ReasonToolInUse {
		t.Fatalf("expected in-use denial, got %v", err)
	}
}

func TestEnableToolOnBehalfBillsTheUser(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.EnableTool(context.Background(), toolID, staffID, memberID, projectID)
	if err != nil {
		t.Fatalf("staff enable on behalf: %v", err)
	}
	if res.Event.OperatorID != staffID || res.Event.UserID != memberID || res.Event.ProjectID != projectID {
		t.Fatalf("event = %+v", res.Event)
	}
}

func TestEnableToolCancelsBypassedReservation(t *testing.T) {
	f := newFixture(t)
	f.reservations.byID[1] = model.Reservation{
		ID: 1, ToolID: toolID, UserID: 77, ProjectID: projectID,
		Start: f.now.Add(-time.Hour), End: f.now.Add(time.Hour),
	}
	f.reservations.nextID = 1

	if _, err := f.svc.EnableTool(context.Background(), toolID, memberID, memberID, projectID); err != nil {
		t.Fatalf("enable: %v", err)
	}
	res := f.reservations.byID[1]
	if !res.Cancelled {
		t.Fatal("walking over another user's reservation must cancel it")
	}
	if res.CancelledByID == nil || *res.CancelledByID != memberID {
		t.Fatalf("cancelled by = %v, want %d", res.CancelledByID, memberID)
	}
	if len(f.notifier.cancelled) != 1 || f.notifier.cancelled[0].ID != 1 {
		t.Fatalf("cancellation notifications = %+v", f.notifier.cancelled)
	}
}

func TestEnableToolKeepsOwnReservation(t *testing.T) {
	f := newFixture(t)
	f.reservations.byID[1] = model.Reservation{
		ID: 1, ToolID: toolID, UserID: memberID, ProjectID: projectID,
		Start: f.now.Add(-time.Hour), End: f.now.Add(time.Hour),
	}
	f.reservations.nextID = 1

	if _, err := f.svc.EnableTool(context.Background(), toolID, memberID, memberID, projectID); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if f.reservations.byID[1].Cancelled {
		t.Fatal("the holder's own reservation must survive the enable")
	}
}

func TestDisableToolIdleIsBenign(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.DisableTool(context.Background(), toolID, memberID, 0, "")
	if err != nil {
		t.Fatalf("disable idle tool: %v", err)
	}
	if !res.AlreadyIdle {
		t.Fatal("disabling an idle tool must be benign")
	}
	if len(f.locker.issued()) != 0 {
		t.Fatal("idle disable must not touch the interlock")
	}
}

func TestDisableToolLocksInterlockAndAppliesDowntime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.EnableTool(ctx, toolID, memberID, memberID, projectID); err != nil {
		t.Fatalf("enable: %v", err)
	}
	f.now = f.now.Add(30 * time.Minute)

	res, err := f.svc.DisableTool(ctx, toolID, memberID, 15*time.Minute, "etch depth 2um")
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	wantEnd := f.now.Add(15 * time.Minute)
	if res.Event.End == nil || !res.Event.End.Equal(wantEnd) {
		t.Fatalf("end = %v, want %v", res.Event.End, wantEnd)
	}
	if res.Event.RunData != "etch depth 2um" {
		t.Fatalf("run data = %q", res.Event.RunData)
	}
	got := f.locker.issued()
	if len(got) != 2 || got[1] != "lock:31" {
		t.Fatalf("commands = %v, want the interlock de-energized", got)
	}
}

func TestDisableToolStrangerDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.EnableTool(ctx, toolID, memberID, memberID, projectID); err != nil {
		t.Fatalf("enable: %v", err)
	}
	stranger := model.User{ID: 60, Username: "eve", IsActive: true, ActiveProjectIDs: []uint64{projectID}}
	f.users.byID[stranger.ID] = stranger

	_, err := f.svc.DisableTool(ctx, toolID, stranger.ID, 0, "")
	var d *policy.Denial
	if !errors.As(err, &d) || d.Reason != policy.ReasonNotCurrentUser {
		t.Fatalf("expected not-current-user denial, got %v", err)
	}
	// Staff may always end a session.
	if _, err := f.svc.DisableTool(ctx, toolID, staffID, 0, ""); err != nil {
		t.Fatalf("staff disable: %v", err)
	}
}

func TestDelayedLogoffBlocksReenable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := model.User{
		ID: 61, Username: "bob", IsActive: true,
		ActiveProjectIDs: []uint64{projectID},
		QualifiedToolIDs: []uint64{toolID},
	}
	f.users.byID[bob.ID] = bob

	if _, err := f.svc.EnableTool(ctx, toolID, memberID, memberID, projectID); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := f.svc.DisableTool(ctx, toolID, memberID, 30*time.Minute, ""); err != nil {
		t.Fatalf("disable: %v", err)
	}

	// The downtime window is still running a minute later.
	f.now = f.now.Add(time.Minute)
	_, err := f.svc.EnableTool(ctx, toolID, bob.ID, bob.ID, projectID)
	var d *policy.Denial
	if !errors.As(err, &d) || d.Reason != policy.ReasonDelayedLogoffInEffect {
		t.Fatalf("expected delayed-logoff denial, got %v", err)
	}

	// Staff may cut the window short; and once it passes, anyone may.
	if _, err := f.svc.EnableTool(ctx, toolID, staffID, staffID, projectID); err != nil {
		t.Fatalf("staff enable during delayed logoff: %v", err)
	}
	if _, err := f.svc.DisableTool(ctx, toolID, staffID, 0, ""); err != nil {
		t.Fatalf("staff disable: %v", err)
	}
	f.now = f.now.Add(time.Hour)
	if _, err := f.svc.EnableTool(ctx, toolID, bob.ID, bob.ID, projectID); err != nil {
		t.Fatalf("enable after the window passed: %v", err)
	}
}

func TestDisableToolRefusesStackedDelayedLogoff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.EnableTool(ctx, toolID, memberID, memberID, projectID); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := f.svc.DisableTool(ctx, toolID, memberID, 30*time.Minute, ""); err != nil {
		t.Fatalf("disable: %v", err)
	}

	// Staff run the tool inside the downtime window; ending that run
	// with a second delayed logoff would stack the windows.
	if _, err := f.svc.EnableTool(ctx, toolID, staffID, staffID, projectID); err != nil {
		t.Fatalf("staff enable: %v", err)
	}
	_, err := f.svc.DisableTool(ctx, toolID, staffID, 10*time.Minute, "")
	var d *policy.Denial
	if !errors.As(err, &d) || d.Reason != policy.ReasonDelayedLogoffInEffect {
		t.Fatalf("expected stacked delayed-logoff denial, got %v", err)
	}
	// An immediate disable still works.
	if _, err := f.svc.DisableTool(ctx, toolID, staffID, 0, ""); err != nil {
		t.Fatalf("immediate disable: %v", err)
	}
}

func TestDisableToolHardwareFaultLeavesReservationIntact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reservations.byID[1] = model.Reservation{
		ID: 1, ToolID: toolID, UserID: memberID, ProjectID: projectID,
		Start: f.now.Add(-time.Hour), End: f.now.Add(3 * time.Hour),
	}
	f.reservations.nextID = 1

	if _, err := f.svc.EnableTool(ctx, toolID, memberID, memberID, projectID); err != nil {
		t.Fatalf("enable: %v", err)
	}
	f.locker.err = errTestHardware

	if _, err := f.svc.DisableTool(ctx, toolID, memberID, 10*time.Minute, ""); err == nil {
		t.Fatal("expected hardware error to surface")
	}
	if f.reservations.byID[1].Shortened {
		t.Fatal("a failed disable must leave the reservation untouched")
	}
	if len(f.notifier.shortened) != 0 {
		t.Fatalf("no shortening notification on a failed disable, got %+v", f.notifier.shortened)
	}
	if _, err := f.usage.CurrentForTool(ctx, toolID); err != nil {
		t.Fatal("the usage event must stay open after a failed disable")
	}
}

func TestDisableToolShortensCoveringReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reservations.byID[1] = model.Reservation{
		ID: 1, ToolID: toolID, UserID: memberID, ProjectID: projectID,
		Start: f.now.Add(-time.Hour), End: f.now.Add(3 * time.Hour),
	}
	f.reservations.nextID = 1

	if _, err := f.svc.EnableTool(ctx, toolID, memberID, memberID, projectID); err != nil {
		t.Fatalf("enable: %v", err)
	}
	res, err := f.svc.DisableTool(ctx, toolID, memberID, 10*time.Minute, "")
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if res.Shortened == nil {
		t.Fatal("finishing early must shorten the covering reservation")
	}
	wantEnd := f.now.Add(10 * time.Minute)
	if !res.Shortened.End.Equal(wantEnd) {
		t.Fatalf("shortened end = %v, want %v", res.Shortened.End, wantEnd)
	}
	original := f.reservations.byID[1]
	if !original.Shortened || original.DescendantID == nil || *original.DescendantID != res.Shortened.ID {
		t.Fatalf("original reservation = %+v, want shortened with a descendant link", original)
	}
	if len(f.notifier.shortened) != 1 {
		t.Fatalf("shorten notifications = %+v", f.notifier.shortened)
	}
}

func TestDisableToolDoesNotExtendReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reservations.byID[1] = model.Reservation{
		ID: 1, ToolID: toolID, UserID: memberID, ProjectID: projectID,
		Start: f.now.Add(-time.Hour), End: f.now.Add(5 * time.Minute),
	}
	f.reservations.nextID = 1

	if _, err := f.svc.EnableTool(ctx, toolID, memberID, memberID, projectID); err != nil {
		t.Fatalf("enable: %v", err)
	}
	// Requested downtime ends after the reservation already would.
	res, err := f.svc.DisableTool(ctx, toolID, memberID, 20*time.Minute, "")
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if res.Shortened != nil {
		t.Fatal("shortening must never push a reservation's end later")
	}
	if f.reservations.byID[1].Shortened {
		t.Fatal("reservation must be untouched")
	}
}

func TestDisableToolStaffSkipsShortening(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reservations.byID[1] = model.Reservation{
		ID: 1, ToolID: toolID, UserID: staffID, ProjectID: projectID,
		Start: f.now.Add(-time.Hour), End: f.now.Add(3 * time.Hour),
	}
	f.reservations.nextID = 1

	if _, err := f.svc.EnableTool(ctx, toolID, staffID, staffID, projectID); err != nil {
		t.Fatalf("enable: %v", err)
	}
	res, err := f.svc.DisableTool(ctx, toolID, staffID, 0, "")
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if res.Shortened != nil {
		t.Fatal("staff disables must leave reservations alone")
	}
}

func TestCancelReservationAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reservations.byID[1] = model.Reservation{
		ID: 1, ToolID: toolID, UserID: memberID, ProjectID: projectID,
		Start: f.now.Add(time.Hour), End: f.now.Add(2 * time.Hour),
	}
	f.reservations.nextID = 1

	stranger := model.User{ID: 60, Username: "eve", IsActive: true}
	f.users.byID[stranger.ID] = stranger
	if _, err := f.svc.CancelReservation(ctx, 1, stranger.ID); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("stranger cancel: %v, want forbidden", err)
	}

	cancelled, err := f.svc.CancelReservation(ctx, 1, memberID)
	if err != nil {
		t.Fatalf("holder cancel: %v", err)
	}
	if !cancelled.Cancelled || cancelled.CancelledByID == nil || *cancelled.CancelledByID != memberID {
		t.Fatalf("cancelled = %+v", cancelled)
	}
	if len(f.notifier.cancelled) != 1 {
		t.Fatalf("cancellation notifications = %+v", f.notifier.cancelled)
	}

	// A second cancel finds nothing live.
	if _, err := f.svc.CancelReservation(ctx, 1, memberID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("double cancel: %v, want not found", err)
	}
}

func TestCancelReservationPastOnlyByStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reservations.byID[1] = model.Reservation{
		ID: 1, ToolID: toolID, UserID: memberID, ProjectID: projectID,
		Start: f.now.Add(-2 * time.Hour), End: f.now.Add(-time.Hour),
	}
	f.reservations.nextID = 1

	if _, err := f.svc.CancelReservation(ctx, 1, memberID); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("member cancel of past reservation: %v, want forbidden", err)
	}
	if _, err := f.svc.CancelReservation(ctx, 1, staffID); err != nil {
		t.Fatalf("staff cancel of past reservation: %v", err)
	}
}
