package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covault/covault/pkg/orgs"
	"github.com/covault/covault/pkg/plans"
)

func newTestOrganization(planType plans.PlanType) *orgs.Organization {
	seats := 5
	now := time.Now().UTC()
	return &orgs.Organization{
		ID:           uuid.New(),
		Name:         "Acme",
		BillingEmail: "billing@acme.test",
		Plan:         "Teams (Monthly)",
		PlanType:     planType,
		Seats:        &seats,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newTestMember(orgID uuid.UUID, email string, createdAt time.Time) *orgs.Member {
	return &orgs.Member{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Email:          email,
		Status:         orgs.MemberStatusInvited,
		Role:           orgs.RoleUser,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestOrganizationRepo_RoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	org := newTestOrganization(plans.PlanTeams)
	require.NoError(t, store.Organizations().Create(ctx, org))

	got, err := store.Organizations().GetByID(ctx, org.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, org.Name, got.Name)
	assert.Equal(t, org.PlanType, got.PlanType)
	require.NotNil(t, got.Seats)
	assert.Equal(t, 5, *got.Seats)
}

func TestOrganizationRepo_GetByIDMissing(t *testing.T) {
	store := NewStore()

	got, err := store.Organizations().GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOrganizationRepo_CreateDuplicate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	org := newTestOrganization(plans.PlanTeams)
	require.NoError(t, store.Organizations().Create(ctx, org))
	err := store.Organizations().Create(ctx, org)
	assert.Error(t, err)
}

func TestOrganizationRepo_ReplaceMissing(t *testing.T) {
	store := NewStore()

	err := store.Organizations().Replace(context.Background(), newTestOrganization(plans.PlanTeams))
	assert.Error(t, err)
}

func TestOrganizationRepo_DeepCopyIsolation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	org := newTestOrganization(plans.PlanTeams)
	require.NoError(t, store.Organizations().Create(ctx, org))

	// Mutating the caller's struct after Create must not touch the store.
	org.Name = "Mutated"
	*org.Seats = 99

	got, err := store.Organizations().GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
	assert.Equal(t, 5, *got.Seats)

	// Mutating a returned struct must not touch the store either.
	*got.Seats = 42
	again, err := store.Organizations().GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, *again.Seats)
}

func TestOrganizationRepo_DeleteCascades(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	org := newTestOrganization(plans.PlanTeams)
	require.NoError(t, store.Organizations().Create(ctx, org))

	now := time.Now().UTC()
	member := newTestMember(org.ID, "a@acme.test", now)
	require.NoError(t, store.Members().Create(ctx, member))

	subvault := &orgs.Subvault{ID: uuid.New(), OrganizationID: org.ID, Name: "Engineering", CreatedAt: now, UpdatedAt: now}
	store.AddSubvault(subvault)
	assignment := &orgs.SubvaultAssignment{ID: uuid.New(), SubvaultID: subvault.ID, MemberID: member.ID, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Assignments().Upsert(ctx, assignment))

	require.NoError(t, store.Organizations().Delete(ctx, org.ID))

	gotOrg, err := store.Organizations().GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Nil(t, gotOrg)

	gotMember, err := store.Members().GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, gotMember)

	assignments, err := store.Assignments().GetManyByMemberID(ctx, member.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestOrganizationRepo_DeleteIdempotent(t *testing.T) {
	store := NewStore()
	assert.NoError(t, store.Organizations().Delete(context.Background(), uuid.New()))
}

func TestOrganizationRepo_GetManyWithSubscription(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	withSub := newTestOrganization(plans.PlanTeams)
	withSub.BillingSubscriptionID = "sub_1"
	withSub.CreatedAt = time.Now().UTC().Add(-time.Hour)
	withoutSub := newTestOrganization(plans.PlanFree)
	require.NoError(t, store.Organizations().Create(ctx, withSub))
	require.NoError(t, store.Organizations().Create(ctx, withoutSub))

	got, err := store.Organizations().GetManyWithSubscription(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, withSub.ID, got[0].ID)
}

func TestMemberRepo_DeleteCascadesAssignments(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	now := time.Now().UTC()
	member := newTestMember(uuid.New(), "a@acme.test", now)
	require.NoError(t, store.Members().Create(ctx, member))

	assignment := &orgs.SubvaultAssignment{ID: uuid.New(), SubvaultID: uuid.New(), MemberID: member.ID, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Assignments().Upsert(ctx, assignment))

	require.NoError(t, store.Members().Delete(ctx, member.ID))

	assignments, err := store.Assignments().GetManyByMemberID(ctx, member.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestMemberRepo_GetByOrganizationAndEmail(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	orgID := uuid.New()
	member := newTestMember(orgID, "a@acme.test", time.Now().UTC())
	require.NoError(t, store.Members().Create(ctx, member))

	got, err := store.Members().GetByOrganizationAndEmail(ctx, orgID, "a@acme.test")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, member.ID, got.ID)

	// Accepted members have their email cleared; an empty lookup must not
	// match them.
	got, err = store.Members().GetByOrganizationAndEmail(ctx, orgID, "")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.Members().GetByOrganizationAndEmail(ctx, uuid.New(), "a@acme.test")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemberRepo_GetManyByOrganizationIDSorted(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	orgID := uuid.New()
	base := time.Now().UTC()
	second := newTestMember(orgID, "b@acme.test", base.Add(time.Minute))
	first := newTestMember(orgID, "a@acme.test", base)
	other := newTestMember(uuid.New(), "c@other.test", base)
	require.NoError(t, store.Members().Create(ctx, second))
	require.NoError(t, store.Members().Create(ctx, first))
	require.NoError(t, store.Members().Create(ctx, other))

	got, err := store.Members().GetManyByOrganizationID(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)

	count, err := store.Members().CountByOrganizationID(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemberRepo_CountFreeOrgAdminships(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	freeOrg := newTestOrganization(plans.PlanFree)
	paidOrg := newTestOrganization(plans.PlanTeams)
	require.NoError(t, store.Organizations().Create(ctx, freeOrg))
	require.NoError(t, store.Organizations().Create(ctx, paidOrg))

	accountID := uuid.New()
	now := time.Now().UTC()

	freeOwner := newTestMember(freeOrg.ID, "", now)
	freeOwner.AccountID = &accountID
	freeOwner.Role = orgs.RoleOwner
	freeOwner.Status = orgs.MemberStatusConfirmed
	require.NoError(t, store.Members().Create(ctx, freeOwner))

	paidAdmin := newTestMember(paidOrg.ID, "", now)
	paidAdmin.AccountID = &accountID
	paidAdmin.Role = orgs.RoleAdmin
	paidAdmin.Status = orgs.MemberStatusConfirmed
	require.NoError(t, store.Members().Create(ctx, paidAdmin))

	freeUser := newTestMember(freeOrg.ID, "", now)
	otherAccount := uuid.New()
	freeUser.AccountID = &otherAccount
	freeUser.Role = orgs.RoleUser
	require.NoError(t, store.Members().Create(ctx, freeUser))

	count, err := store.Members().CountFreeOrgAdminships(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.Members().CountFreeOrgAdminships(ctx, otherAccount)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSubvaultRepo_ScopedToOrganization(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	orgID := uuid.New()
	now := time.Now().UTC()
	store.AddSubvault(&orgs.Subvault{ID: uuid.New(), OrganizationID: orgID, Name: "Engineering", CreatedAt: now, UpdatedAt: now})
	store.AddSubvault(&orgs.Subvault{ID: uuid.New(), OrganizationID: orgID, Name: "Finance", CreatedAt: now.Add(time.Second), UpdatedAt: now})
	store.AddSubvault(&orgs.Subvault{ID: uuid.New(), OrganizationID: uuid.New(), Name: "Other", CreatedAt: now, UpdatedAt: now})

	got, err := store.Subvaults().GetManyByOrganizationID(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Engineering", got[0].Name)
	assert.Equal(t, "Finance", got[1].Name)

	count, err := store.Subvaults().CountByOrganizationID(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAssignmentRepo_UpsertReplacesInPlace(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	now := time.Now().UTC()
	assignment := &orgs.SubvaultAssignment{ID: uuid.New(), SubvaultID: uuid.New(), MemberID: uuid.New(), ReadOnly: false, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Assignments().Upsert(ctx, assignment))

	assignment.ReadOnly = true
	require.NoError(t, store.Assignments().Upsert(ctx, assignment))

	got, err := store.Assignments().GetManyByMemberID(ctx, assignment.MemberID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].ReadOnly)
	assert.Equal(t, assignment.ID, got[0].ID)

	require.NoError(t, store.Assignments().Delete(ctx, assignment.ID))
	got, err = store.Assignments().GetManyByMemberID(ctx, assignment.MemberID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
