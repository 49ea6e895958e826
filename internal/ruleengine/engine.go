package ruleengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/user"
)

// Log event ids emitted by the engine.
const (
	EventMissingUser        = 3001
	EventMissingAttribute   = 3003
	EventInvalidAttribute   = 3004
	EventAttributeConverted = 3005
	EventEvaluationLog      = 5000
)

// Engine evaluates settings. It holds no per-evaluation state and is safe for
// concurrent use.
type Engine struct {
	logger *slog.Logger // Dedicated logger instance (DI)
}

// New creates a new Engine.
// If logger is nil, it defaults to slog.Default().
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Evaluate runs the rollout algorithm for req.Setting.
//
// Soft problems (missing user, missing or invalid attributes) only skip the
// affected targeting rules and are reported as warnings. Structural problems
// abort the evaluation with an *EvaluationError; the evaluation log then ends
// with the caller's default value.
//
// When the logger accepts Info records, the evaluation log is emitted with
// event_id 5000 and returned in Result.Log.
func (e *Engine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if req.Setting == nil {
		return Result{}, &EvaluationError{Key: req.Key, Message: "Setting is missing."}
	}

	var log *evalLog
	if e.logger.Enabled(ctx, slog.LevelInfo) {
		log = &evalLog{}
		log.append("Evaluating '" + req.Key + "'")
		if req.User != nil {
			log.append(" for User '" + req.User.String() + "'")
		}
		log.increaseIndent()
	}

	visited := make([]string, 0, 4)
	ec := &evalContext{
		engine:   e,
		ctx:      ctx,
		key:      req.Key,
		setting:  req.Setting,
		user:     req.User,
		settings: req.Settings,
		visited:  &visited,
		log:      log,
		warned:   &warnings{},
	}

	res, err := ec.evaluateSetting()
	returned := res.Value
	if err != nil {
		log.resetIndent().increaseIndent()
		returned = req.Default
	}

	if log != nil {
		log.newLine("Returning '" + returned.String() + "'.").decreaseIndent()
		res.Log = log.String()
		e.logger.Log(ctx, slog.LevelInfo, res.Log, "event_id", EventEvaluationLog)
	}

	if err != nil {
		msg := err.Error()
		var ee *EvaluationError
		if errors.As(err, &ee) {
			msg = ee.Message
		}
		return Result{Log: res.Log}, &EvaluationError{Key: req.Key, Message: msg}
	}
	return res, nil
}

// evalContext carries the per-call mutable state of one evaluation. A new
// context is derived for every prerequisite flag; the visited stack is shared.
type evalContext struct {
	engine   *Engine
	ctx      context.Context
	key      string
	setting  *model.Setting
	user     *user.User
	settings map[string]*model.Setting
	visited  *[]string
	log      *evalLog
	warned   *warnings
}

// warnings records which once-per-evaluation warnings were already logged.
// It is shared by the contexts derived for prerequisite flags.
type warnings struct {
	missingUser      bool
	missingAttribute bool
}

func (ec *evalContext) forPrerequisite(key string, setting *model.Setting) *evalContext {
	return &evalContext{
		engine:   ec.engine,
		ctx:      ec.ctx,
		key:      key,
		setting:  setting,
		user:     ec.user,
		settings: ec.settings,
		visited:  ec.visited,
		log:      ec.log,
		warned:   ec.warned,
	}
}

func (ec *evalContext) warn(eventID int, msg string) {
	ec.engine.logger.Log(ec.ctx, slog.LevelWarn, msg, "event_id", eventID, "key", ec.key)
}

func (ec *evalContext) logMissingUser() {
	if ec.warned.missingUser {
		return
	}
	ec.warned.missingUser = true
	ec.warn(EventMissingUser, fmt.Sprintf(
		"Cannot evaluate targeting rules and %% options for setting '%s' (User Object is missing). "+
			"You should pass a User Object to the evaluation methods in order to make targeting work properly.",
		ec.key))
}

func errorf(format string, args ...any) error {
	return &EvaluationError{Message: fmt.Sprintf(format, args...)}
}
