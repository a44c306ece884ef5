// Package invalidation evicts cached assets in response to Pub/Sub messages.
//
// A message names what to drop through its attributes:
//
//	action=evict collection=images key=chips   drop one asset (action may be omitted)
//	action=clear collection=images             drop a whole collection
//	action=clear                               drop everything
//
// Eviction only removes cached values; the next Get loads the asset again.
package invalidation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// Message attribute names and actions.
const (
	AttrAction     = "action"
	AttrCollection = "collection"
	AttrKey        = "key"

	ActionEvict = "evict"
	ActionClear = "clear"
)

// ErrInvalidMessage is returned for messages that do not describe an eviction.
var ErrInvalidMessage = errors.New("invalid invalidation message")

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("invalidation subscriber stopped")

// Evicter is the cache surface the subscriber drives. *library.Library satisfies it.
type Evicter interface {
	Evict(collection, key string) error
	Clear(collection string) error
	ClearAll()
}

// SubscriberConfig holds the subscription to read and its receive settings.
type SubscriberConfig struct {
	SubscriptionID         string
	MaxOutstandingMessages int
	NumGoroutines          int
}

// DefaultSubscriberConfig returns a config for subID with the default receive settings.
func DefaultSubscriberConfig(subID string) *SubscriberConfig {
	return &SubscriberConfig{
		SubscriptionID:         subID,
		MaxOutstandingMessages: 100,
		NumGoroutines:          2,
	}
}

// Subscriber receives invalidation messages and applies them to an Evicter.
type Subscriber struct {
	subscription       *pubsub.Subscription
	evicter            Evicter
	logger             zerolog.Logger
	stopOnce           sync.Once
	mu                 sync.Mutex
	stopped            bool
	cancelSubscription context.CancelFunc
	doneChan           chan struct{}
}

// NewSubscriber checks that the subscription exists and prepares a subscriber.
func NewSubscriber(cfg *SubscriberConfig, client *pubsub.Client, evicter Evicter, logger zerolog.Logger) (*Subscriber, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil")
	}
	if evicter == nil {
		return nil, fmt.Errorf("evicter cannot be nil")
	}
	sub := client.Subscription(cfg.SubscriptionID)

	subContext, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	exists, err := sub.Exists(subContext)
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription %s: %w", cfg.SubscriptionID, err)
	}
	if !exists {
		return nil, fmt.Errorf("subscription %s does not exist", cfg.SubscriptionID)
	}

	sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines

	return &Subscriber{
		subscription: sub,
		evicter:      evicter,
		logger:       logger.With().Str("component", "InvalidationSubscriber").Str("subscription_id", cfg.SubscriptionID).Logger(),
		doneChan:     make(chan struct{}),
	}, nil
}

// Start begins receiving in a background goroutine. A subscriber can be
// started once and not after Stop.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.cancelSubscription != nil {
		return fmt.Errorf("invalidation subscriber already started")
	}
	receiveCtx, cancel := context.WithCancel(ctx)
	s.cancelSubscription = cancel

	go func() {
		defer close(s.doneChan)
		s.logger.Info().Msg("Invalidation receive loop started.")
		err := s.subscription.Receive(receiveCtx, func(_ context.Context, msg *pubsub.Message) {
			if err := Apply(s.evicter, msg.Attributes); err != nil {
				// Redelivery would not fix a malformed or unknown target.
				s.logger.Warn().Err(err).Str("msg_id", msg.ID).Interface("attributes", msg.Attributes).Msg("Discarding invalidation message.")
			} else {
				s.logger.Debug().Str("msg_id", msg.ID).Interface("attributes", msg.Attributes).Msg("Applied invalidation message.")
			}
			msg.Ack()
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("Invalidation receive loop exited with error.")
		}
		s.logger.Info().Msg("Invalidation receive loop stopped.")
	}()
	return nil
}

// Stop cancels the receive loop and waits for it to exit or for ctx to expire.
func (s *Subscriber) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		cancel := s.cancelSubscription
		s.mu.Unlock()
		if cancel == nil {
			close(s.doneChan)
			return
		}
		cancel()
		select {
		case <-s.doneChan:
		case <-ctx.Done():
			err = fmt.Errorf("timeout waiting for invalidation subscriber to stop: %w", ctx.Err())
		}
	})
	return err
}

// Done is closed once the receive loop has exited, or by Stop if the
// subscriber was never started.
func (s *Subscriber) Done() <-chan struct{} { return s.doneChan }

// Apply performs the eviction described by a message's attributes.
func Apply(evicter Evicter, attrs map[string]string) error {
	action := attrs[AttrAction]
	if action == "" {
		action = ActionEvict
	}
	collection := attrs[AttrCollection]
	key := attrs[AttrKey]

	switch action {
	case ActionEvict:
		if collection == "" || key == "" {
			return fmt.Errorf("%w: evict needs %q and %q", ErrInvalidMessage, AttrCollection, AttrKey)
		}
		return evicter.Evict(collection, key)
	case ActionClear:
		if collection == "" {
			evicter.ClearAll()
			return nil
		}
		return evicter.Clear(collection)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidMessage, action)
	}
}
