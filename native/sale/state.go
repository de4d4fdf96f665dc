package sale

import (
	"fmt"

	"tokensale/core/types"
	"tokensale/storage"
)

var stateKey = []byte("sale/state")

// State holds every persisted field of the sale engine. The engine owns it
// exclusively; nothing else reads or writes it.
type State struct {
	Administrator        types.Address
	PendingAdministrator types.Address
	Treasury             types.Address
	EngineAccount        types.Address
	UnitSize             uint64
	PricePerUnit         uint64
	Paused               bool
	TotalInRaised        uint64
	TotalOutSold         uint64
}

// Clone returns a copy so callers cannot mutate engine-held state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// StateStore persists the engine state in the underlying key-value store.
type StateStore struct {
	kv storage.KVStore
}

// NewStateStore binds a store to the supplied storage backend.
func NewStateStore(kv storage.KVStore) *StateStore {
	return &StateStore{kv: kv}
}

// Load retrieves the persisted state, reporting false when none was saved.
func (ss *StateStore) Load() (*State, bool, error) {
	if ss == nil || ss.kv == nil {
		return nil, false, fmt.Errorf("sale: state store not initialised")
	}
	state := &State{}
	ok, err := ss.kv.KVGet(stateKey, state)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return state, true, nil
}

// Save writes the state. The engine calls it after every committed mutation
// so a restart resumes with exact totals.
func (ss *StateStore) Save(state *State) error {
	if ss == nil || ss.kv == nil {
		return fmt.Errorf("sale: state store not initialised")
	}
	if state == nil {
		return fmt.Errorf("sale: nil state")
	}
	return ss.kv.KVPut(stateKey, state)
}
