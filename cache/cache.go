// Package cache persists network evaluations in a badger store keyed by
// position hash, so repeated searches over the same positions skip the
// forward pass.
package cache

import (
	"bytes"
	"encoding/gob"

	"github.com/dgraph-io/badger/v4"
	"github.com/notnil/chess"
	"github.com/pkg/errors"

	"github.com/divinenn/mcts"
)

// entry is the stored form of an evaluation. Moves are stored as UCI
// strings and re-resolved against the position on load.
type entry struct {
	Value  float32
	Moves  []string
	Priors []float32
}

// Store wraps a badger database.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the cache directory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open evaluation cache at %s", dir)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) get(key []byte) (*entry, bool) {
	var e entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return gob.NewDecoder(bytes.NewReader(v)).Decode(&e)
		})
	})
	if err != nil {
		return nil, false
	}
	return &e, true
}

func (s *Store) put(key []byte, e *entry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return errors.WithStack(err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
}

// Evaluator caches the results of an inner evaluator.
type Evaluator struct {
	inner mcts.Evaluator
	store *Store
}

// NewEvaluator wraps inner with the store.
func NewEvaluator(inner mcts.Evaluator, store *Store) *Evaluator {
	return &Evaluator{inner: inner, store: store}
}

// EvaluateBatch implements mcts.Evaluator. Cached positions are served
// from the store; the remainder goes to the inner evaluator in one batch
// and the fresh results are written back.
func (e *Evaluator) EvaluateBatch(positions []*chess.Position) ([]mcts.Evaluation, error) {
	evals := make([]mcts.Evaluation, len(positions))
	var missing []*chess.Position
	var missingIdx []int

	for i, pos := range positions {
		if ev, ok := e.lookup(pos); ok {
			evals[i] = ev
			continue
		}
		missing = append(missing, pos)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		fresh, err := e.inner.EvaluateBatch(missing)
		if err != nil {
			return nil, err
		}
		for j, ev := range fresh {
			evals[missingIdx[j]] = ev
			if err := e.save(missing[j], ev); err != nil {
				return nil, err
			}
		}
	}

	return evals, nil
}

func (e *Evaluator) lookup(pos *chess.Position) (mcts.Evaluation, bool) {
	h := pos.Hash()
	ent, ok := e.store.get(h[:])
	if !ok || len(ent.Moves) != len(ent.Priors) {
		return mcts.Evaluation{}, false
	}

	moves := pos.ValidMoves()
	if len(moves) != len(ent.Moves) {
		return mcts.Evaluation{}, false
	}
	byUCI := make(map[string]*chess.Move, len(moves))
	for _, m := range moves {
		byUCI[m.String()] = m
	}

	priors := make([]mcts.Prior, len(ent.Moves))
	for i, uci := range ent.Moves {
		m, ok := byUCI[uci]
		if !ok {
			return mcts.Evaluation{}, false
		}
		priors[i] = mcts.Prior{Move: m, P: ent.Priors[i]}
	}
	return mcts.Evaluation{Priors: priors, Value: ent.Value}, true
}

func (e *Evaluator) save(pos *chess.Position, ev mcts.Evaluation) error {
	ent := &entry{
		Value:  ev.Value,
		Moves:  make([]string, len(ev.Priors)),
		Priors: make([]float32, len(ev.Priors)),
	}
	for i, p := range ev.Priors {
		ent.Moves[i] = p.Move.String()
		ent.Priors[i] = p.P
	}
	h := pos.Hash()
	return e.store.put(h[:], ent)
}
