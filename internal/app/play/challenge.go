/*
Package play contains the real-time session coordinator.

This file defines the Negotiator, which brokers challenge offers between two
online users: offer, accept, decline, and silent expiry of challenges the
target never answered.
*/
package play

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dominet/internal/app/user"
	"dominet/internal/pkg/errs"
	"dominet/internal/pkg/logx"
	"dominet/internal/pkg/randx"
)

// Challenge is one pending game offer from a challenger to a target.
type Challenge struct {
	ID         uuid.UUID `json:"challengeId"`
	Challenger user.User `json:"challenger"`
	Target     user.User `json:"target"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ChallengeDeclinedPayload notifies the challenger of a decline.
type ChallengeDeclinedPayload struct {
	ChallengeID uuid.UUID `json:"challengeId"`
	Target      user.User `json:"target"`
}

// Negotiator holds pending challenges and expires the ones nobody answered.
// Expiry is silent: neither party is notified, the challenge just stops being
// acceptable.
type Negotiator struct {
	// mu protects the challenges map.
	mu sync.Mutex

	// challenges maps challenge id to its pending offer.
	challenges map[uuid.UUID]*Challenge

	registry *Registry

	ttl       time.Duration
	sweepTick time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	logger zerolog.Logger
}

// NewNegotiator constructs a Negotiator and starts its background sweep.
// ttl is how long an unanswered challenge stays acceptable; sweepTick is how
// often expired challenges are collected.
func NewNegotiator(registry *Registry, ttl, sweepTick time.Duration) *Negotiator {
	n := &Negotiator{
		challenges: make(map[uuid.UUID]*Challenge),
		registry:   registry,
		ttl:        ttl,
		sweepTick:  sweepTick,
		stop:       make(chan struct{}),
		logger:     logx.Logger().With().Str("component", "ChallengeNegotiator").Logger(),
	}

	n.wg.Add(1)
	go n.sweepLoop()

	return n
}

// Offer registers a pending challenge and delivers challenge-received to the
// target's connection. The challenger receives nothing on success. Fails with
// TargetUnreachable when the target has no live connection.
func (n *Negotiator) Offer(challenger, target user.User) (*Challenge, *errs.CustomError) {
	targetConn, ok := n.registry.Lookup(target.ID)
	if !ok {
		return nil, errs.NewError(errs.ErrTargetUnreachable)
	}

	ch := &Challenge{
		ID:         randx.NewID(),
		Challenger: challenger,
		Target:     target,
		CreatedAt:  time.Now(),
	}

	n.mu.Lock()
	n.challenges[ch.ID] = ch
	n.mu.Unlock()

	n.logger.Info().
		Str("challenge_id", ch.ID.String()).
		Str("challenger_id", challenger.ID).
		Str("target_id", target.ID).
		Msg("Challenge offered.")

	if err := targetConn.SendEvent(EventChallengeReceived, ch); err != nil {
		n.logger.Warn().Err(err).Str("challenge_id", ch.ID.String()).Msg("Failed to queue challenge for target")
	}

	return ch, nil
}

// Take removes and returns a pending challenge. Expired or unknown ids fail
// with ChallengeNotFound; an expired challenge is indistinguishable from one
// that never existed.
func (n *Negotiator) Take(id uuid.UUID) (*Challenge, *errs.CustomError) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch, ok := n.challenges[id]
	if !ok || time.Since(ch.CreatedAt) > n.ttl {
		delete(n.challenges, id)
		return nil, errs.NewError(errs.ErrChallengeNotFound)
	}

	delete(n.challenges, id)
	return ch, nil
}

// Restore puts a taken challenge back, used when game creation fails after the
// accept so the target may retry.
func (n *Negotiator) Restore(ch *Challenge) {
	n.mu.Lock()
	n.challenges[ch.ID] = ch
	n.mu.Unlock()
}

// Decline removes the challenge and notifies the challenger only. Only the
// challenged target may decline; anyone else observes ChallengeNotFound.
func (n *Negotiator) Decline(id uuid.UUID, actorID string) *errs.CustomError {
	ch, cerr := n.Take(id)
	if cerr != nil {
		return cerr
	}

	if ch.Target.ID != actorID {
		n.Restore(ch)
		return errs.NewError(errs.ErrChallengeNotFound)
	}

	n.logger.Info().
		Str("challenge_id", ch.ID.String()).
		Str("target_id", ch.Target.ID).
		Msg("Challenge declined.")

	if conn, ok := n.registry.Lookup(ch.Challenger.ID); ok {
		if err := conn.SendEvent(EventChallengeDeclined, ChallengeDeclinedPayload{
			ChallengeID: ch.ID,
			Target:      ch.Target,
		}); err != nil {
			n.logger.Warn().Err(err).Str("challenge_id", ch.ID.String()).Msg("Failed to notify challenger of decline")
		}
	}

	return nil
}

// DropFor silently discards every pending challenge the user sent or received.
// Called when the user disconnects; nobody is notified.
func (n *Negotiator) DropFor(userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, ch := range n.challenges {
		if ch.Challenger.ID == userID || ch.Target.ID == userID {
			delete(n.challenges, id)
		}
	}
}

// Pending returns the number of pending challenges.
func (n *Negotiator) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.challenges)
}

// sweepLoop periodically discards challenges older than the ttl.
func (n *Negotiator) sweepLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.sweepTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.sweep()
		case <-n.stop:
			return
		}
	}
}

// sweep removes every challenge past the ttl without notifying either party.
func (n *Negotiator) sweep() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, ch := range n.challenges {
		if time.Since(ch.CreatedAt) > n.ttl {
			delete(n.challenges, id)
			n.logger.Debug().Str("challenge_id", id.String()).Msg("Expired challenge removed.")
		}
	}
}

// Stop terminates the sweep goroutine and waits for it to exit.
func (n *Negotiator) Stop() {
	n.stopOnce.Do(func() {
		close(n.stop)
	})
	n.wg.Wait()
}
