// Package registration performs the Admin API setup an installed shop needs:
// registering the cart transform function and subscribing to app webhooks.
package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/fabric-pricing/internal/common"
	"github.com/noah-isme/fabric-pricing/internal/shopauth"
)

// Outcome summarises a single registration attempt.
type Outcome string

const (
	OutcomeRegistered        Outcome = "registered"
	OutcomeAlreadyRegistered Outcome = "already_registered"
	OutcomeFailed            Outcome = "failed"
	OutcomeDisabled          Outcome = "disabled"
)

// GraphQLClient executes Admin API GraphQL documents. shopifyapi.Client satisfies it.
type GraphQLClient interface {
	GraphQL(ctx context.Context, shop, accessToken, query string, variables map[string]any, out any) error
}

// Task is one post-install registration.
type Task interface {
	Kind() string
	Register(ctx context.Context, sess shopauth.Session) (Outcome, error)
}

// UserError is an entry of a mutation's userErrors list.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

// UserErrors is returned when a mutation reports validation failures.
type UserErrors []UserError

func (e UserErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ue := range e {
		if ue.Code != "" {
			msgs = append(msgs, ue.Code+": "+ue.Message)
			continue
		}
		msgs = append(msgs, ue.Message)
	}
	return "registration: user errors: " + strings.Join(msgs, "; ")
}

// alreadyDone reports whether every user error says the resource already exists.
func (e UserErrors) alreadyDone() bool {
	if len(e) == 0 {
		return false
	}
	for _, ue := range e {
		msg := strings.ToLower(ue.Message)
		if !strings.Contains(msg, "already") && !strings.HasSuffix(ue.Code, "ALREADY_REGISTERED") {
			return false
		}
	}
	return true
}

func classify(userErrors UserErrors) (Outcome, error) {
	switch {
	case len(userErrors) == 0:
		return OutcomeRegistered, nil
	case userErrors.alreadyDone():
		return OutcomeAlreadyRegistered, nil
	default:
		return OutcomeFailed, common.PlatformAPIError(userErrors)
	}
}

const cartTransformCreateMutation = `mutation cartTransformCreate($functionId: String!) {
  cartTransformCreate(functionId: $functionId) {
    cartTransform {
      id
      functionId
    }
    userErrors {
      field
      message
      code
    }
  }
}`

// CartTransformRegistrar attaches the pricing function to a shop's cart.
type CartTransformRegistrar struct {
	Client     GraphQLClient
	FunctionID string
}

// Kind implements Task.
func (CartTransformRegistrar) Kind() string { return "cart_transform" }

// Register implements Task.
func (r CartTransformRegistrar) Register(ctx context.Context, sess shopauth.Session) (Outcome, error) {
	functionID := strings.TrimSpace(r.FunctionID)
	if functionID == "" {
		return OutcomeDisabled, nil
	}
	if r.Client == nil {
		return OutcomeFailed, errors.New("registration: graphql client not configured")
	}
	var out struct {
		CartTransformCreate struct {
			CartTransform *struct {
				ID         string `json:"id"`
				FunctionID string `json:"functionId"`
			} `json:"cartTransform"`
			UserErrors UserErrors `json:"userErrors"`
		} `json:"cartTransformCreate"`
	}
	err := r.Client.GraphQL(ctx, sess.Shop, sess.AccessToken, cartTransformCreateMutation,
		map[string]any{"functionId": functionID}, &out)
	if err != nil {
		return OutcomeFailed, common.PlatformAPIError(fmt.Errorf("cartTransformCreate: %w", err))
	}
	return classify(out.CartTransformCreate.UserErrors)
}

const webhookSubscriptionCreateMutation = `mutation webhookSubscriptionCreate($topic: WebhookSubscriptionTopic!, $webhookSubscription: WebhookSubscriptionInput!) {
  webhookSubscriptionCreate(topic: $topic, webhookSubscription: $webhookSubscription) {
    webhookSubscription {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

// WebhookRegistrar subscribes a shop to app webhooks delivered to CallbackURL.
type WebhookRegistrar struct {
	Client      GraphQLClient
	CallbackURL string
	Topics      []string
}

// Kind implements Task.
func (WebhookRegistrar) Kind() string { return "webhook_subscription" }

// Register implements Task. Every topic is attempted; the first failure is returned.
func (r WebhookRegistrar) Register(ctx context.Context, sess shopauth.Session) (Outcome, error) {
	if r.CallbackURL == "" || len(r.Topics) == 0 {
		return OutcomeDisabled, nil
	}
	if r.Client == nil {
		return OutcomeFailed, errors.New("registration: graphql client not configured")
	}
	result := OutcomeAlreadyRegistered
	var firstErr error
	for _, topic := range r.Topics {
		var out struct {
			WebhookSubscriptionCreate struct {
				UserErrors UserErrors `json:"userErrors"`
			} `json:"webhookSubscriptionCreate"`
		}
		err := r.Client.GraphQL(ctx, sess.Shop, sess.AccessToken, webhookSubscriptionCreateMutation, map[string]any{
			"topic": topic,
			"webhookSubscription": map[string]any{
				"callbackUrl": r.CallbackURL,
				"format":      "JSON",
			},
		}, &out)
		outcome := OutcomeFailed
		if err != nil {
			err = common.PlatformAPIError(fmt.Errorf("webhookSubscriptionCreate %s: %w", topic, err))
		} else {
			outcome, err = classify(out.WebhookSubscriptionCreate.UserErrors)
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if outcome == OutcomeRegistered {
			result = OutcomeRegistered
		}
	}
	if firstErr != nil {
		return OutcomeFailed, firstErr
	}
	return result, nil
}
