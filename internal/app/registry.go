package app

import (
	"context"
	"fmt"
	"sync"

	"subquestion-challenge-service/internal/domain"
)

// ChallengeType is the contract the platform calls for every challenge of a given type tag.
type ChallengeType interface {
	ID() string
	Name() string
	Create(ctx context.Context, in domain.CreateInput) (domain.Challenge, error)
	// Read projects the challenge for acct; a nil acct sees every question unsolved.
	Read(ctx context.Context, challengeID int64, acct *domain.AccountKey) (domain.ChallengeView, error)
	Update(ctx context.Context, challengeID int64, in domain.UpdateInput) (domain.Challenge, error)
	Attempt(ctx context.Context, challengeID int64, acct domain.AccountKey, sub domain.Submission) (domain.Outcome, error)
	Solve(ctx context.Context, challengeID int64, acct domain.AccountKey, sub domain.Submission) error
	Fail(ctx context.Context, challengeID int64, acct domain.AccountKey, sub domain.Submission) error
	Delete(ctx context.Context, challengeID int64) error
}

// Registry maps type tags to implementations. It is populated once at startup.
type Registry struct {
	mu    sync.RWMutex
	types map[string]ChallengeType
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]ChallengeType)}
}

// Register adds ct under its ID.
func (r *Registry) Register(ct ChallengeType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[ct.ID()]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateChallengeType, ct.ID())
	}
	r.types[ct.ID()] = ct
	return nil
}

// Lookup returns the implementation registered for typeID.
func (r *Registry) Lookup(typeID string) (ChallengeType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.types[typeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownChallengeType, typeID)
	}
	return ct, nil
}

// Dispatcher resolves the implementation responsible for a stored challenge.
type Dispatcher struct {
	registry *Registry
	store    Store
}

func NewDispatcher(registry *Registry, store Store) *Dispatcher {
	return &Dispatcher{registry: registry, store: store}
}

// Resolve loads the challenge's type tag and returns its implementation.
func (d *Dispatcher) Resolve(ctx context.Context, challengeID int64) (ChallengeType, error) {
	var typeID string
	err := d.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.GetChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		typeID = c.Type
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d.registry.Lookup(typeID)
}

// Lookup returns the implementation for a type tag, used for creation.
func (d *Dispatcher) Lookup(typeID string) (ChallengeType, error) {
	return d.registry.Lookup(typeID)
}
