// Package actions exposes the participation operations as server actions:
// every call returns a Result with a localized error instead of a Go error.
package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-initiatives/adapters/gocommand"
	"github.com/goliatone/go-initiatives/command"
	"github.com/goliatone/go-initiatives/core"
	"github.com/goliatone/go-initiatives/query"
	glog "github.com/goliatone/go-logger/glog"
)

var errAuthenticationRequired = core.NewError("authentication is required", goerrors.CategoryAuth, core.ErrorUnauthorized)

type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	// Status is the HTTP status matching Code, zero on success.
	Status int `json:"-"`
}

// Request identifies the caller. Locale selects the error language and may
// be empty.
type Request struct {
	Actor  core.Actor
	Locale string
}

type JoinInput struct {
	InitiativeID  string
	Role          core.ParticipantRole
	FormResponses map[string]any
}

type JoinData struct {
	ParticipationID string                   `json:"participation_id"`
	Status          core.ParticipationStatus `json:"status"`
}

type ParticipationData struct {
	ParticipationID string                   `json:"participation_id"`
	InitiativeID    string                   `json:"initiative_id"`
	UserID          string                   `json:"user_id"`
	Status          core.ParticipationStatus `json:"status"`
}

type ParticipantData struct {
	ParticipationID string               `json:"participation_id"`
	UserID          string               `json:"user_id"`
	Name            string               `json:"name"`
	Email           string               `json:"email"`
	Role            core.ParticipantRole `json:"role"`
	FormResponses   map[string]any       `json:"form_responses,omitempty"`
	JoinedAt        string               `json:"joined_at"`
}

type Service interface {
	command.ParticipationService
	query.ParticipantReader
}

type Actions struct {
	join         *command.JoinCommand
	approve      *command.ApproveCommand
	reject       *command.RejectCommand
	kick         *command.KickCommand
	listApproved *query.ListApprovedQuery
	listPending  *query.ListPendingQuery
	translator   core.Translator
	logger       core.Logger
}

type Option func(*Actions)

func WithLogger(logger core.Logger) Option {
	return func(a *Actions) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func New(service Service, translator core.Translator, opts ...Option) (*Actions, error) {
	if service == nil {
		return nil, fmt.Errorf("actions: participation service is required")
	}
	if translator == nil {
		return nil, fmt.Errorf("actions: translator is required")
	}
	actions := &Actions{
		join:         command.NewJoinCommand(service),
		approve:      command.NewApproveCommand(service),
		reject:       command.NewRejectCommand(service),
		kick:         command.NewKickCommand(service),
		listApproved: query.NewListApprovedQuery(service),
		listPending:  query.NewListPendingQuery(service),
		translator:   translator,
		logger:       glog.Ensure(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(actions)
		}
	}
	return actions, nil
}

func (a *Actions) Join(ctx context.Context, req Request, in JoinInput) Result[JoinData] {
	msg := command.JoinMessage{Request: core.JoinRequest{
		InitiativeID:  in.InitiativeID,
		UserID:        req.Actor.UserID,
		Role:          in.Role,
		FormResponses: in.FormResponses,
	}}
	if !req.Actor.Authenticated() {
		return failure[JoinData](ctx, a, req, "join", errAuthenticationRequired)
	}
	participation, err := execute(ctx, msg, a.join.Execute)
	if err != nil {
		return failure[JoinData](ctx, a, req, "join", err)
	}
	return Result[JoinData]{Success: true, Data: JoinData{
		ParticipationID: participation.ID,
		Status:          participation.Status,
	}}
}

func (a *Actions) Approve(ctx context.Context, req Request, participationID string) Result[ParticipationData] {
	msg := command.ApproveMessage{Actor: req.Actor, ParticipationID: participationID}
	if !req.Actor.Authenticated() {
		return failure[ParticipationData](ctx, a, req, "approve", errAuthenticationRequired)
	}
	participation, err := execute(ctx, msg, a.approve.Execute)
	if err != nil {
		return failure[ParticipationData](ctx, a, req, "approve", err)
	}
	return Result[ParticipationData]{Success: true, Data: participationData(participation)}
}

func (a *Actions) Reject(ctx context.Context, req Request, participationID string) Result[ParticipationData] {
	msg := command.RejectMessage{Actor: req.Actor, ParticipationID: participationID}
	if !req.Actor.Authenticated() {
		return failure[ParticipationData](ctx, a, req, "reject", errAuthenticationRequired)
	}
	participation, err := execute(ctx, msg, a.reject.Execute)
	if err != nil {
		return failure[ParticipationData](ctx, a, req, "reject", err)
	}
	return Result[ParticipationData]{Success: true, Data: participationData(participation)}
}

func (a *Actions) Kick(ctx context.Context, req Request, participationID string) Result[ParticipationData] {
	msg := command.KickMessage{Actor: req.Actor, ParticipationID: participationID}
	if !req.Actor.Authenticated() {
		return failure[ParticipationData](ctx, a, req, "kick", errAuthenticationRequired)
	}
	participation, err := execute(ctx, msg, a.kick.Execute)
	if err != nil {
		return failure[ParticipationData](ctx, a, req, "kick", err)
	}
	return Result[ParticipationData]{Success: true, Data: participationData(participation)}
}

func (a *Actions) ListApproved(ctx context.Context, req Request, initiativeID string) Result[[]ParticipantData] {
	msg := query.ListApprovedMessage{Actor: req.Actor, InitiativeID: initiativeID}
	if !req.Actor.Authenticated() {
		return failure[[]ParticipantData](ctx, a, req, "list_approved", errAuthenticationRequired)
	}
	participants, err := ask(ctx, msg, a.listApproved.Query)
	if err != nil {
		return failure[[]ParticipantData](ctx, a, req, "list_approved", err)
	}
	return Result[[]ParticipantData]{Success: true, Data: participantData(participants)}
}

func (a *Actions) ListPending(ctx context.Context, req Request, initiativeID string) Result[[]ParticipantData] {
	msg := query.ListPendingMessage{Actor: req.Actor, InitiativeID: initiativeID}
	if !req.Actor.Authenticated() {
		return failure[[]ParticipantData](ctx, a, req, "list_pending", errAuthenticationRequired)
	}
	participants, err := ask(ctx, msg, a.listPending.Query)
	if err != nil {
		return failure[[]ParticipantData](ctx, a, req, "list_pending", err)
	}
	return Result[[]ParticipantData]{Success: true, Data: participantData(participants)}
}

// execute validates msg and runs the command, collecting its stored result.
func execute[T any](ctx context.Context, msg T, run func(context.Context, T) error) (core.Participation, error) {
	if err := validate(msg); err != nil {
		return core.Participation{}, err
	}
	collector := gocmd.NewResult[core.Participation]()
	if err := run(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return core.Participation{}, err
	}
	participation, _ := collector.Load()
	return participation, nil
}

func ask[T any, R any](ctx context.Context, msg T, run func(context.Context, T) (R, error)) (R, error) {
	if err := validate(msg); err != nil {
		var zero R
		return zero, err
	}
	return run(ctx, msg)
}

// validate runs the message's own Validate first so typed validation errors
// reach MapError unchanged.
func validate(msg any) error {
	if v, ok := msg.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return gocommand.ValidateMessageContract(msg)
}

func failure[T any](ctx context.Context, a *Actions, req Request, action string, err error) Result[T] {
	mapped := core.MapError(err)
	code := mapped.TextCode
	if mapped.Code >= 500 {
		a.logger.WithContext(ctx).Error("action failed",
			"action", action,
			"user_id", req.Actor.UserID,
			"error", err,
		)
	}
	return Result[T]{
		Success: false,
		Error:   a.translator.T(strings.TrimSpace(req.Locale), code, nil),
		Code:    code,
		Status:  mapped.Code,
	}
}

func participationData(p core.Participation) ParticipationData {
	return ParticipationData{
		ParticipationID: p.ID,
		InitiativeID:    p.InitiativeID,
		UserID:          p.UserID,
		Status:          p.Status,
	}
}

func participantData(participants []core.Participant) []ParticipantData {
	out := make([]ParticipantData, 0, len(participants))
	for _, participant := range participants {
		out = append(out, ParticipantData{
			ParticipationID: participant.ID,
			UserID:          participant.UserID,
			Name:            participant.Name,
			Email:           participant.Email,
			Role:            participant.Role,
			FormResponses:   participant.FormResponses,
			JoinedAt:        participant.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
