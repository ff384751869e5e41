package group

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fkhayef/tally/internal/activity"
	"github.com/fkhayef/tally/internal/jobs"
)

func newGroupFixture(t *testing.T) (*Service, *activity.MemoryStore, *jobs.Runner) {
	t.Helper()
	log := zap.NewNop()

	runner := jobs.NewRunner(jobs.Config{BackoffBase: time.Millisecond}, log)
	runner.Start()
	t.Cleanup(runner.Stop)

	events := activity.NewMemoryStore()
	service := NewService(NewMemoryStore(), activity.NewEmitter(events, runner, log))
	return service, events, runner
}

func TestCreateGroupAddsCreatorAsMember(t *testing.T) {
	service, events, runner := newGroupFixture(t)
	ctx := context.Background()

	g, err := service.Create(ctx, "alice", &CreateGroupRequest{Name: "ski trip"})
	require.NoError(t, err)
	assert.Equal(t, "alice", g.CreatorID)

	ok, err := service.IsMember(ctx, g.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	runner.Drain()
	all := events.All()
	require.Len(t, all, 1)
	assert.Equal(t, activity.EventGroupCreated, all[0].Type)
	assert.Equal(t, g.ID, all[0].EntityID)
}

func TestCreateGroupRequiresName(t *testing.T) {
	service, _, _ := newGroupFixture(t)

	_, err := service.Create(context.Background(), "alice", &CreateGroupRequest{Name: "   "})
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestAddMember(t *testing.T) {
	service, events, runner := newGroupFixture(t)
	ctx := context.Background()

	g, err := service.Create(ctx, "alice", &CreateGroupRequest{Name: "flat"})
	require.NoError(t, err)

	m, err := service.AddMember(ctx, g.ID, "alice", &AddMemberRequest{UserID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "alice", m.AddedBy)

	ok, err := service.IsMember(ctx, g.ID, "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	// Duplicate adds are rejected.
	_, err = service.AddMember(ctx, g.ID, "alice", &AddMemberRequest{UserID: "bob"})
	assert.ErrorIs(t, err, ErrMemberAlreadyExists)

	// Non-members cannot add.
	_, err = service.AddMember(ctx, g.ID, "mallory", &AddMemberRequest{UserID: "carol"})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	runner.Drain()
	var memberEvents int
	for _, e := range events.All() {
		if e.Type == activity.EventMemberAdded {
			memberEvents++
		}
	}
	assert.Equal(t, 1, memberEvents)
}

func TestRemoveMemberAuthorization(t *testing.T) {
	service, _, _ := newGroupFixture(t)
	ctx := context.Background()

	g, err := service.Create(ctx, "alice", &CreateGroupRequest{Name: "flat"})
	require.NoError(t, err)
	_, err = service.AddMember(ctx, g.ID, "alice", &AddMemberRequest{UserID: "bob"})
	require.NoError(t, err)
	_, err = service.AddMember(ctx, g.ID, "alice", &AddMemberRequest{UserID: "carol"})
	require.NoError(t, err)

	// bob cannot remove carol.
	err = service.RemoveMember(ctx, g.ID, "bob", "carol")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// bob can leave.
	require.NoError(t, service.RemoveMember(ctx, g.ID, "bob", "bob"))

	// The creator can remove anyone.
	require.NoError(t, service.RemoveMember(ctx, g.ID, "alice", "carol"))

	ok, err := service.IsMember(ctx, g.ID, "carol")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteGroup(t *testing.T) {
	service, _, _ := newGroupFixture(t)
	ctx := context.Background()

	g, err := service.Create(ctx, "alice", &CreateGroupRequest{Name: "flat"})
	require.NoError(t, err)
	_, err = service.AddMember(ctx, g.ID, "alice", &AddMemberRequest{UserID: "bob"})
	require.NoError(t, err)

	err = service.Delete(ctx, g.ID, "bob")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	require.NoError(t, service.Delete(ctx, g.ID, "alice"))

	// Deleted groups fail membership checks but stay readable.
	ok, err := service.IsMember(ctx, g.ID, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	gwm, err := service.GetWithMembers(ctx, g.ID)
	require.NoError(t, err)
	assert.NotNil(t, gwm.DeletedAt)

	// A second delete reports not found.
	err = service.Delete(ctx, g.ID, "alice")
	assert.Error(t, err)

	// No writes to a deleted group.
	_, err = service.AddMember(ctx, g.ID, "alice", &AddMemberRequest{UserID: "carol"})
	assert.ErrorIs(t, err, ErrGroupDeleted)
}

func TestListForUser(t *testing.T) {
	service, _, _ := newGroupFixture(t)
	ctx := context.Background()

	g1, err := service.Create(ctx, "alice", &CreateGroupRequest{Name: "flat"})
	require.NoError(t, err)
	_, err = service.Create(ctx, "bob", &CreateGroupRequest{Name: "band"})
	require.NoError(t, err)
	g3, err := service.Create(ctx, "alice", &CreateGroupRequest{Name: "trip"})
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, g3.ID, "alice"))

	groups, err := service.ListForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, g1.ID, groups[0].ID)
}
