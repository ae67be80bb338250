// Package service runs the inbound message pipeline: identify the contact,
// open or resume a conversation, pseudonymize the text, route it to an agent,
// call the completion provider, and revert the reply.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	agentmodels "maestro/internal/agent/models"
	"maestro/internal/conversation/models"
	privacymodels "maestro/internal/privacy/models"
	"maestro/internal/provider"
	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
	"maestro/pkg/platform/audit"
	"maestro/pkg/platform/sentinel"
	"maestro/pkg/requestcontext"
)

// fallbackReply is sent when no agent clears the routing threshold.
const fallbackReply = "Olá! Sou um assistente virtual. Como posso ajudá-lo hoje?"

// ContactStore resolves and registers channel contacts.
type ContactStore interface {
	Create(ctx context.Context, contact *models.Contact) error
	FindByIdentifier(ctx context.Context, tenantID id.TenantID, channel models.Channel, identifier string) (*models.Contact, error)
}

// ConversationStore manages conversation lifecycle.
type ConversationStore interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	FindActiveByContact(ctx context.Context, contactID id.ContactID) (*models.Conversation, error)
	Update(ctx context.Context, conversation *models.Conversation) error
}

// MessageStore persists the exchanged messages.
type MessageStore interface {
	Create(ctx context.Context, message *models.Message) error
}

// Pseudonymizer shields sensitive values before text leaves the pipeline and
// restores them in the reply.
type Pseudonymizer interface {
	Pseudonymize(ctx context.Context, text string, scope privacymodels.Scope) (string, error)
	Revert(ctx context.Context, text string, scope privacymodels.Scope) (string, error)
}

// IntentResolver picks the agent for a message.
type IntentResolver interface {
	ResolveBest(ctx context.Context, tenantID id.TenantID, message string) (*agentmodels.Agent, float64, error)
}

// InboundMessage is one webhook delivery to process.
type InboundMessage struct {
	Channel    models.Channel
	SenderID   string
	SenderName string
	Content    string
	ExternalID string
	ReceivedAt time.Time
}

// Reply is the pipeline's outcome for one inbound message.
type Reply struct {
	ConversationID id.ConversationID
	MessageID      id.MessageID
	AgentID        *id.AgentID
	Content        string
	Confidence     float64
}

// Orchestrator wires the pipeline stages together. Each collaborator is an
// interface so tests run against in-memory stores and the echo provider.
type Orchestrator struct {
	contacts      ContactStore
	conversations ConversationStore
	messages      MessageStore
	privacy       Pseudonymizer
	intents       IntentResolver
	completer     provider.Completer
	logger        *slog.Logger
	tracer        trace.Tracer
	auditor       audit.Publisher
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(o *Orchestrator) { o.auditor = p }
}

func New(
	contacts ContactStore,
	conversations ConversationStore,
	messages MessageStore,
	privacy Pseudonymizer,
	intents IntentResolver,
	completer provider.Completer,
	opts ...Option,
) (*Orchestrator, error) {
	if contacts == nil || conversations == nil || messages == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "orchestrator requires conversation stores")
	}
	if privacy == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "orchestrator requires a pseudonymizer")
	}
	if intents == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "orchestrator requires an intent resolver")
	}
	if completer == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "orchestrator requires a completer")
	}
	o := &Orchestrator{
		contacts:      contacts,
		conversations: conversations,
		messages:      messages,
		privacy:       privacy,
		intents:       intents,
		completer:     completer,
		logger:        slog.Default(),
		tracer:        noop.NewTracerProvider().Tracer("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// ProcessInbound runs the full pipeline for one message. The reply content
// has all pseudonymization reverted; only pseudonymized text reaches the
// completion provider.
func (o *Orchestrator) ProcessInbound(ctx context.Context, tenantID id.TenantID, in InboundMessage) (*Reply, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.ProcessInbound",
		trace.WithAttributes(attribute.String("tenant_id", tenantID.String())))
	defer span.End()

	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if in.SenderID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sender identifier is required")
	}
	if in.Content == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "message content is required")
	}

	now := requestcontext.Now(ctx)
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = now
	}

	contact, err := o.resolveContact(ctx, tenantID, in)
	if err != nil {
		return nil, err
	}
	conversation, err := o.resolveConversation(ctx, tenantID, contact.ID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("conversation_id", conversation.ID.String()))

	inbound, err := models.NewMessage(id.MessageID(uuid.New()), conversation.ID, models.DirectionInbound, in.Content, in.ReceivedAt)
	if err != nil {
		return nil, err
	}
	inbound.ExternalID = in.ExternalID
	if err := o.messages.Create(ctx, inbound); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting inbound message")
	}

	scope := privacymodels.ForConversation(conversation.ID)
	shielded, err := o.pseudonymize(ctx, in.Content, scope)
	if err != nil {
		return nil, err
	}

	agent, confidence, err := o.resolveAgent(ctx, tenantID, conversation, shielded)
	if err != nil {
		return nil, err
	}

	replyText, err := o.complete(ctx, agent, contact, shielded)
	if err != nil {
		return nil, err
	}

	restored, err := o.revert(ctx, replyText, scope)
	if err != nil {
		return nil, err
	}

	outbound, err := models.NewMessage(id.MessageID(uuid.New()), conversation.ID, models.DirectionOutbound, restored, now)
	if err != nil {
		return nil, err
	}
	if err := o.messages.Create(ctx, outbound); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting outbound message")
	}

	o.logger.InfoContext(ctx, "message processed",
		"tenant_id", tenantID.String(),
		"conversation_id", conversation.ID.String(),
		"channel", string(in.Channel),
	)
	o.emitProcessed(ctx, tenantID, conversation.ID, agent, confidence)

	return &Reply{
		ConversationID: conversation.ID,
		MessageID:      outbound.ID,
		AgentID:        conversation.AgentID,
		Content:        restored,
		Confidence:     confidence,
	}, nil
}

func (o *Orchestrator) resolveContact(ctx context.Context, tenantID id.TenantID, in InboundMessage) (*models.Contact, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.resolveContact")
	defer span.End()

	contact, err := o.contacts.FindByIdentifier(ctx, tenantID, in.Channel, in.SenderID)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "looking up contact")
	}

	contact, err = models.NewContact(id.ContactID(uuid.New()), tenantID, in.Channel, in.SenderID, in.SenderName, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := o.contacts.Create(ctx, contact); err != nil {
		// Lost a registration race: the other writer's contact wins.
		if errors.Is(err, sentinel.ErrConflict) {
			return o.contacts.FindByIdentifier(ctx, tenantID, in.Channel, in.SenderID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "registering contact")
	}
	return contact, nil
}

func (o *Orchestrator) resolveConversation(ctx context.Context, tenantID id.TenantID, contactID id.ContactID) (*models.Conversation, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.resolveConversation")
	defer span.End()

	conversation, err := o.conversations.FindActiveByContact(ctx, contactID)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "looking up conversation")
	}

	conversation, err = models.NewConversation(id.ConversationID(uuid.New()), tenantID, contactID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := o.conversations.Create(ctx, conversation); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "opening conversation")
	}
	return conversation, nil
}

func (o *Orchestrator) pseudonymize(ctx context.Context, text string, scope privacymodels.Scope) (string, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.pseudonymize")
	defer span.End()

	shielded, err := o.privacy.Pseudonymize(ctx, text, scope)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "pseudonymizing message")
	}
	return shielded, nil
}

// resolveAgent routes the pseudonymized text and sticks the winning agent to
// the conversation. A miss leaves any previous assignment untouched.
func (o *Orchestrator) resolveAgent(ctx context.Context, tenantID id.TenantID, conversation *models.Conversation, shielded string) (*agentmodels.Agent, float64, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.resolveAgent")
	defer span.End()

	agent, confidence, err := o.intents.ResolveBest(ctx, tenantID, shielded)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "resolving intent")
	}
	if agent == nil {
		return nil, 0, nil
	}
	span.SetAttributes(
		attribute.String("agent", agent.Name),
		attribute.Float64("confidence", confidence),
	)

	if conversation.AssignAgent(agent.ID) {
		if err := o.conversations.Update(ctx, conversation); err != nil {
			return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "assigning agent")
		}
	}
	return agent, confidence, nil
}

func (o *Orchestrator) complete(ctx context.Context, agent *agentmodels.Agent, contact *models.Contact, shielded string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.complete")
	defer span.End()

	if agent == nil {
		return fallbackReply, nil
	}

	systemPrompt := agent.SystemPrompt
	if contact.Greet && contact.Name != "" {
		systemPrompt += "\nAddress the contact as " + contact.Name + "."
	}
	completion, err := o.completer.Complete(ctx, provider.Request{
		SystemPrompt: systemPrompt,
		Prompt:       shielded,
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "calling completion provider")
	}
	span.SetAttributes(
		attribute.Int("input_tokens", completion.InputTokens),
		attribute.Int("output_tokens", completion.OutputTokens),
	)
	return completion.Text, nil
}

func (o *Orchestrator) revert(ctx context.Context, text string, scope privacymodels.Scope) (string, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.revert")
	defer span.End()

	restored, err := o.privacy.Revert(ctx, text, scope)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "reverting pseudonymization")
	}
	return restored, nil
}

func (o *Orchestrator) emitProcessed(ctx context.Context, tenantID id.TenantID, conversationID id.ConversationID, agent *agentmodels.Agent, confidence float64) {
	if o.auditor == nil {
		return
	}
	detail := map[string]string{}
	if agent != nil {
		detail["agent"] = agent.Name
		detail["confidence"] = strconv.FormatFloat(confidence, 'f', 2, 64)
	} else {
		detail["agent"] = ""
	}
	event := audit.Event{
		Action:         audit.ActionMessageProcessed,
		Category:       audit.CategoryOf(audit.ActionMessageProcessed),
		TenantID:       tenantID,
		ConversationID: conversationID,
		Timestamp:      requestcontext.Now(ctx),
		Detail:         detail,
	}
	if err := o.auditor.Emit(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err.Error())
	}
}
