package nervous

import (
	"time"

	"github.com/google/uuid"
	"github.com/kestrelworks/nervecenter/internal/record"
)

// #region register
// ActorDraft is the input to RegisterActor.
type ActorDraft struct {
	Name        string
	Type        record.ActorType
	Permissions []string
}

// RegisterActor durably registers a new actor and returns the stored
// record. Names are not unique keys: registering the same name twice
// creates two distinct actors.
func (s *System) RegisterActor(d ActorDraft) (record.Actor, error) {
	if d.Name == "" {
		return record.Actor{}, &ValidationError{Msg: "actor name required"}
	}
	if d.Type == "" {
		d.Type = record.ActorSystem
	} else if _, err := record.ParseActorType(string(d.Type)); err != nil {
		return record.Actor{}, &ValidationError{Msg: err.Error()}
	}

	a := record.Actor{
		ID:          uuid.New().String(),
		Name:        d.Name,
		Type:        d.Type,
		Permissions: append([]string(nil), d.Permissions...),
		CreatedAt:   time.Now().UTC(),
	}

	s.actorsMu.Lock()
	defer s.actorsMu.Unlock()

	if _, err := s.jnl.Append(record.KindActor, a); err != nil {
		return record.Actor{}, err
	}
	s.actors[a.ID] = a
	return a, nil
}
// #endregion register

// #region get
// GetActor looks up a registered actor.
func (s *System) GetActor(id string) (record.Actor, error) {
	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()

	a, ok := s.actors[id]
	if !ok {
		return record.Actor{}, &NotFoundError{Kind: record.KindActor, ID: id}
	}
	return a, nil
}

// ListActors returns every registered actor.
func (s *System) ListActors() []record.Actor {
	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()

	out := make([]record.Actor, 0, len(s.actors))
	for _, a := range s.actors {
		out = append(out, a)
	}
	return out
}
// #endregion get

// #region write-check
// checkWriter verifies the actor exists and may write. The actors lock is
// a leaf, so callers may hold another registry lock here; actors are never
// deleted, so the answer cannot go stale.
func (s *System) checkWriter(actorID, op string) error {
	s.actorsMu.RLock()
	a, ok := s.actors[actorID]
	s.actorsMu.RUnlock()

	if !ok {
		return &UnknownActorError{ActorID: actorID, Op: op}
	}
	if !a.CanWrite() {
		return &PermissionError{ActorID: actorID, Op: op}
	}
	return nil
}
// #endregion write-check
