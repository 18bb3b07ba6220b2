package core

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/agentplane/internal/apperr"
	"github.com/edvin/agentplane/internal/model"
)

const testInstance = "d4e5f6a7-b8c9-4d0e-9f1a-2b3c4d5e6f70"

func instanceIn(status string) model.AgentInstance {
	return model.AgentInstance{
		ID: testInstance, VersionID: testVersion, TenantID: testTenant, Environment: "staging",
		PolicyEnvelopeID: testPolicy, Status: status, CreatedAt: testNow, UpdatedAt: testNow,
	}
}

func TestTransitionPolicy_Strict(t *testing.T) {
	p := StrictTransitions
	assert.True(t, p.Allows(model.InstanceProvisioning, model.InstanceActive))
	assert.True(t, p.Allows(model.InstanceActive, model.InstancePaused))
	assert.True(t, p.Allows(model.InstancePaused, model.InstanceActive))
	assert.True(t, p.Allows(model.InstanceQuarantined, model.InstanceRetired))
	assert.False(t, p.Allows(model.InstanceRetired, model.InstanceActive))
	assert.False(t, p.Allows(model.InstanceQuarantined, model.InstanceActive))
	assert.False(t, p.Allows(model.InstanceActive, model.InstanceProvisioning))
	assert.False(t, p.Allows(model.InstanceActive, "deleted"))
}

func TestTransitionPolicy_Permissive(t *testing.T) {
	p := PermissiveTransitions
	assert.True(t, p.Allows(model.InstanceRetired, model.InstanceActive))
	assert.True(t, p.Allows(model.InstanceQuarantined, model.InstanceProvisioning))
	assert.False(t, p.Allows(model.InstanceActive, "deleted"))
}

func TestInstanceService_Create_Success(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := NewInstanceService(store, newTestEvents(store, pub), "")
	ctx := context.Background()

	store.db.On("QueryRow", ctx, sqlLike("FROM agent_versions"), mock.Anything).Return(existsRow(true)).Once()
	store.db.On("QueryRow", ctx, sqlLike("FROM policy_envelopes"), mock.Anything).Return(existsRow(true)).Once()
	var inserted []any
	store.db.On("QueryRow", ctx, sqlLike("INSERT INTO agent_instances"), mock.Anything).
		Run(func(a mock.Arguments) { inserted = a.Get(2).([]any) }).
		Return(valuesRow(testNow, testNow)).Once()
	expectEventInsert(store.db)

	target := "k8s://cluster-a"
	inst, err := svc.Create(ctx, testPrincipal(), CreateInstanceParams{
		VersionID:        testVersion,
		PolicyEnvelopeID: testPolicy,
		Environment:      "staging",
		RuntimeTarget:    &target,
	})
	require.NoError(t, err)
	assert.Equal(t, model.InstanceProvisioning, inst.Status)
	assert.Equal(t, testNow, inst.UpdatedAt)
	assert.Equal(t, model.InstanceProvisioning, inserted[6])
	require.Equal(t, []string{model.EventInstanceProvisioned}, pub.types())
	assert.JSONEq(t, `{"instance_id":"`+inst.ID+`","version_id":"`+testVersion+`","policy_envelope_id":"`+testPolicy+`","environment":"staging","status":"provisioning"}`,
		string(pub.events[0].Payload))
	store.db.AssertExpectations(t)
}

func TestInstanceService_Create_MissingReferences(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		store := newFakeStore()
		svc := NewInstanceService(store, newTestEvents(store, nil), StrictTransitions)
		ctx := context.Background()
		store.db.On("QueryRow", ctx, sqlLike("FROM agent_versions"), mock.Anything).Return(existsRow(false))

		_, err := svc.Create(ctx, testPrincipal(), CreateInstanceParams{VersionID: testVersion, PolicyEnvelopeID: testPolicy, Environment: "prod"})
		require.Error(t, err)
		assert.Equal(t, "version not found", err.Error())
	})

	t.Run("policy", func(t *testing.T) {
		store := newFakeStore()
		svc := NewInstanceService(store, newTestEvents(store, nil), StrictTransitions)
		ctx := context.Background()
		store.db.On("QueryRow", ctx, sqlLike("FROM agent_versions"), mock.Anything).Return(existsRow(true))
		store.db.On("QueryRow", ctx, sqlLike("FROM policy_envelopes"), mock.Anything).Return(existsRow(false))

		_, err := svc.Create(ctx, testPrincipal(), CreateInstanceParams{VersionID: testVersion, PolicyEnvelopeID: testPolicy, Environment: "prod"})
		require.Error(t, err)
		assert.Equal(t, "policy envelope not found", err.Error())
		store.db.AssertNotCalled(t, "QueryRow", ctx, sqlLike("INSERT INTO agent_instances"), mock.Anything)
	})

	t.Run("malformed policy id", func(t *testing.T) {
		store := newFakeStore()
		svc := NewInstanceService(store, newTestEvents(store, nil), StrictTransitions)

		_, err := svc.Create(context.Background(), testPrincipal(), CreateInstanceParams{VersionID: testVersion, PolicyEnvelopeID: "p1", Environment: "prod"})
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		assert.Empty(t, store.writes)
	})
}

func TestInstanceService_List_JoinsLabels(t *testing.T) {
	store := newFakeStore()
	svc := NewInstanceService(store, newTestEvents(store, nil), StrictTransitions)
	ctx := context.Background()

	vals := append(instanceValues(instanceIn(model.InstanceActive)), "1.0.0", "triage-bot")
	store.db.On("Query", ctx, sqlLike("JOIN agent_templates"), mock.Anything).Return(newMockRows(rowOf(vals...)), nil)

	instances, err := svc.List(ctx, testPrincipal())
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, testInstance, instances[0].ID)
	assert.Equal(t, "1.0.0", instances[0].VersionLabel)
	assert.Equal(t, "triage-bot", instances[0].TemplateName)
}

func TestInstanceService_Get_NotFound(t *testing.T) {
	store := newFakeStore()
	svc := NewInstanceService(store, newTestEvents(store, nil), StrictTransitions)
	ctx := context.Background()

	store.db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errRow(pgx.ErrNoRows))

	_, err := svc.Get(ctx, testPrincipal(), testInstance)
	require.Error(t, err)
	assert.Equal(t, "instance not found", err.Error())
}

func TestInstanceService_UpdateStatus_Success(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := NewInstanceService(store, newTestEvents(store, pub), StrictTransitions)
	ctx := context.Background()

	store.db.On("QueryRow", ctx, sqlLike("FOR UPDATE"), mock.Anything).
		Return(valuesRow(instanceValues(instanceIn(model.InstanceProvisioning))...)).Once()
	store.db.On("QueryRow", ctx, sqlLike("UPDATE agent_instances SET status"), mock.Anything).
		Return(valuesRow(instanceValues(instanceIn(model.InstanceActive))...)).Once()
	expectEventInsert(store.db)

	inst, err := svc.UpdateStatus(ctx, testPrincipal(), testInstance, model.InstanceActive)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceActive, inst.Status)
	require.Equal(t, []string{model.EventInstanceStatusChanged}, pub.types())
	assert.JSONEq(t, `{"instance_id":"`+testInstance+`","from":"provisioning","to":"active"}`, string(pub.events[0].Payload))
	store.db.AssertExpectations(t)
}

func TestInstanceService_UpdateStatus_SameStatusIsNoop(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := NewInstanceService(store, newTestEvents(store, pub), StrictTransitions)
	ctx := context.Background()

	store.db.On("QueryRow", ctx, sqlLike("FOR UPDATE"), mock.Anything).
		Return(valuesRow(instanceValues(instanceIn(model.InstancePaused))...))

	inst, err := svc.UpdateStatus(ctx, testPrincipal(), testInstance, model.InstancePaused)
	require.NoError(t, err)
	assert.Equal(t, model.InstancePaused, inst.Status)
	store.db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, pub.events)
}

func TestInstanceService_UpdateStatus_Disallowed(t *testing.T) {
	store := newFakeStore()
	svc := NewInstanceService(store, newTestEvents(store, nil), StrictTransitions)
	ctx := context.Background()

	store.db.On("QueryRow", ctx, sqlLike("FOR UPDATE"), mock.Anything).
		Return(valuesRow(instanceValues(instanceIn(model.InstanceRetired))...))

	_, err := svc.UpdateStatus(ctx, testPrincipal(), testInstance, model.InstanceActive)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPreconditionFailed))
	assert.Equal(t, "instance must be in one of 'provisioning', 'paused' status to move to 'active' (current status 'retired')", err.Error())
}

func TestInstanceTransitionError_NamesRequiredStatus(t *testing.T) {
	tests := []struct {
		from, to string
		want     string
	}{
		{model.InstanceActive, model.InstanceProvisioning,
			"no instance may move to 'provisioning' (current status 'active')"},
		{model.InstanceProvisioning, model.InstancePaused,
			"instance must be in one of 'active', 'quarantined' status to move to 'paused' (current status 'provisioning')"},
		{model.InstanceRetired, model.InstanceQuarantined,
			"instance must be in one of 'provisioning', 'active', 'paused' status to move to 'quarantined' (current status 'retired')"},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			err := instanceTransitionError(tt.from, tt.to)
			assert.True(t, apperr.Is(err, apperr.KindPreconditionFailed))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestInstanceService_UpdateStatus_PermissiveAllowsAnyKnownStatus(t *testing.T) {
	store := newFakeStore()
	svc := NewInstanceService(store, newTestEvents(store, nil), PermissiveTransitions)
	ctx := context.Background()

	store.db.On("QueryRow", ctx, sqlLike("FOR UPDATE"), mock.Anything).
		Return(valuesRow(instanceValues(instanceIn(model.InstanceRetired))...)).Once()
	store.db.On("QueryRow", ctx, sqlLike("UPDATE agent_instances"), mock.Anything).
		Return(valuesRow(instanceValues(instanceIn(model.InstanceActive))...)).Once()
	expectEventInsert(store.db)

	inst, err := svc.UpdateStatus(ctx, testPrincipal(), testInstance, model.InstanceActive)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceActive, inst.Status)
}

func TestInstanceService_UpdateStatus_UnknownStatus(t *testing.T) {
	store := newFakeStore()
	svc := NewInstanceService(store, newTestEvents(store, nil), PermissiveTransitions)

	_, err := svc.UpdateStatus(context.Background(), testPrincipal(), testInstance, "deleted")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalid))
	assert.Empty(t, store.writes)
}
