// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package lobby

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/grange-collective/grange/lib/clock"
	"github.com/grange-collective/grange/lib/ref"
)

// Fixed wall-clock origin for every test.
var testEpoch = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

const linkPrefix = "https://profiles.example/"

type fakeRenderer struct {
	nextHandle int

	pools    map[RenderRef]PoolView
	events   map[RenderRef]EventView
	prompts  map[RenderRef]ApprovalPromptView
	welcomes map[RenderRef]WelcomeView

	// poolHandles maps channel → its pool display handle.
	poolHandles map[string]RenderRef

	discarded     map[RenderRef]bool
	announcements []string

	// gone marks handles whose updates report ErrRenderTargetGone.
	gone map[RenderRef]bool

	// renderErr, when set, fails every Render* call.
	renderErr error
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		pools:       make(map[RenderRef]PoolView),
		events:      make(map[RenderRef]EventView),
		prompts:     make(map[RenderRef]ApprovalPromptView),
		welcomes:    make(map[RenderRef]WelcomeView),
		poolHandles: make(map[string]RenderRef),
		discarded:   make(map[RenderRef]bool),
		gone:        make(map[RenderRef]bool),
	}
}

func (r *fakeRenderer) handle() RenderRef {
	r.nextHandle++
	return RenderRef(fmt.Sprintf("render-%d", r.nextHandle))
}

func (r *fakeRenderer) RenderPool(_ context.Context, channel ref.RoomID, view PoolView) (RenderRef, error) {
	if r.renderErr != nil {
		return "", r.renderErr
	}
	h := r.handle()
	r.pools[h] = view
	r.poolHandles[channel.String()] = h
	return h, nil
}

func (r *fakeRenderer) UpdatePool(_ context.Context, _ ref.RoomID, handle RenderRef, view PoolView) error {
	if r.gone[handle] {
		return ErrRenderTargetGone
	}
	r.pools[handle] = view
	return nil
}

func (r *fakeRenderer) RenderEvent(_ context.Context, _ ref.RoomID, view EventView) (RenderRef, error) {
	if r.renderErr != nil {
		return "", r.renderErr
	}
	h := r.handle()
	r.events[h] = view
	return h, nil
}

func (r *fakeRenderer) UpdateEvent(_ context.Context, _ ref.RoomID, handle RenderRef, view EventView) error {
	r.events[handle] = view
	return nil
}

func (r *fakeRenderer) RenderApprovalPrompt(_ context.Context, _ ref.RoomID, view ApprovalPromptView) (RenderRef, error) {
	if r.renderErr != nil {
		return "", r.renderErr
	}
	h := r.handle()
	r.prompts[h] = view
	return h, nil
}

func (r *fakeRenderer) UpdateApprovalPrompt(_ context.Context, _ ref.RoomID, handle RenderRef, view ApprovalPromptView) error {
	r.prompts[handle] = view
	return nil
}

func (r *fakeRenderer) RenderWelcome(_ context.Context, _ ref.RoomID, view WelcomeView) (RenderRef, error) {
	if r.renderErr != nil {
		return "", r.renderErr
	}
	h := r.handle()
	r.welcomes[h] = view
	return h, nil
}

func (r *fakeRenderer) Discard(_ context.Context, _ ref.RoomID, handle RenderRef) error {
	r.discarded[handle] = true
	return nil
}

func (r *fakeRenderer) Announce(_ context.Context, _ ref.RoomID, text string) error {
	r.announcements = append(r.announcements, text)
	return nil
}

// poolView returns the latest rendered state of the channel's pool
// display.
func (r *fakeRenderer) poolView(t *testing.T, channel ref.RoomID) PoolView {
	t.Helper()
	handle, ok := r.poolHandles[channel.String()]
	if !ok {
		t.Fatalf("no pool display rendered for %s", channel)
	}
	return r.pools[handle]
}

func (r *fakeRenderer) announced(substring string) int {
	count := 0
	for _, text := range r.announcements {
		if strings.Contains(text, substring) {
			count++
		}
	}
	return count
}

type fakeNotifier struct {
	notes map[string][]string
}

func (n *fakeNotifier) Notify(_ context.Context, user ref.UserID, text string) error {
	n.notes[user.String()] = append(n.notes[user.String()], text)
	return nil
}

type fakeDirectory struct {
	profiles   map[string]Profile // keyed by full link
	resolveErr error
}

func (d *fakeDirectory) CheckLink(link string) error {
	if !strings.HasPrefix(link, linkPrefix) {
		return ErrBadLink
	}
	return nil
}

func (d *fakeDirectory) ResolveProfile(_ context.Context, link string) (Profile, error) {
	if d.resolveErr != nil {
		return Profile{}, d.resolveErr
	}
	profile, ok := d.profiles[link]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return profile, nil
}

type fakeRoster struct {
	privileged map[string]bool
	members    map[string]bool
}

func (r *fakeRoster) IsPrivileged(_ context.Context, actor ref.UserID) bool {
	return r.privileged[actor.String()]
}

func (r *fakeRoster) HasMemberTag(_ context.Context, actor ref.UserID) bool {
	return r.members[actor.String()]
}

type fakeMembership struct {
	applied map[string]Profile
	removed map[string]string // user → reason
}

func (m *fakeMembership) ApplyProfile(_ context.Context, user ref.UserID, profile Profile) error {
	m.applied[user.String()] = profile
	return nil
}

func (m *fakeMembership) Remove(_ context.Context, user ref.UserID, reason string) error {
	m.removed[user.String()] = reason
	return nil
}

type harness struct {
	clock       *clock.FakeClock
	renderer    *fakeRenderer
	notifier    *fakeNotifier
	directory   *fakeDirectory
	roster      *fakeRoster
	membership  *fakeMembership
	coordinator *Coordinator

	admin  ref.UserID
	signup ref.RoomID
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithPolicy(t, DefaultActivationPolicy())
}

func newHarnessWithPolicy(t *testing.T, policy ActivationPolicy) *harness {
	t.Helper()

	h := &harness{
		clock:      clock.Fake(testEpoch),
		renderer:   newFakeRenderer(),
		notifier:   &fakeNotifier{notes: make(map[string][]string)},
		directory:  &fakeDirectory{profiles: make(map[string]Profile)},
		roster:     &fakeRoster{privileged: make(map[string]bool), members: make(map[string]bool)},
		membership: &fakeMembership{applied: make(map[string]Profile), removed: make(map[string]string)},
		admin:      mustUser(t, "@boss:grange.test"),
		signup:     mustRoom(t, "!signup:grange.test"),
	}
	h.roster.privileged[h.admin.String()] = true
	h.roster.members[h.admin.String()] = true

	coordinator, err := New(Config{
		Clock:            h.clock,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Renderer:         h.renderer,
		Notifier:         h.notifier,
		Directory:        h.directory,
		Roster:           h.roster,
		Membership:       h.membership,
		SignupChannel:    h.signup,
		ReservationStaff: []ref.UserID{h.admin},
		Policy:           policy,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.coordinator = coordinator
	return h
}

// member registers a verified member and returns their ID.
func (h *harness) member(t *testing.T, raw string) ref.UserID {
	t.Helper()
	user := mustUser(t, raw)
	h.roster.members[user.String()] = true
	return user
}

func mustUser(t *testing.T, raw string) ref.UserID {
	t.Helper()
	user, err := ref.ParseUserID(raw)
	if err != nil {
		t.Fatalf("ParseUserID(%q): %v", raw, err)
	}
	return user
}

func mustRoom(t *testing.T, raw string) ref.RoomID {
	t.Helper()
	room, err := ref.ParseRoomID(raw)
	if err != nil {
		t.Fatalf("ParseRoomID(%q): %v", raw, err)
	}
	return room
}

func wantCode(t *testing.T, err error, code Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("want %s error, got nil", code)
	}
	if !IsCode(err, code) {
		t.Fatalf("want %s error, got %v", code, err)
	}
}
