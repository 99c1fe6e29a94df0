package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/clinicdesk/internal/frontdesk"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

const maxToolRounds = 4

// Call is a function call proposed by the model.
type Call struct {
	Name string
	Args json.RawMessage
}

// Reply is one model turn: text, calls, or both.
type Reply struct {
	Text  string
	Calls []Call
}

// Session is a single chat exchange with the model.
type Session interface {
	Send(ctx context.Context, text string) (Reply, error)
	// Respond returns command results to the model as function responses.
	Respond(ctx context.Context, results []Result) (Reply, error)
}

// Model opens chat sessions with the command set attached as tools.
type Model interface {
	NewSession(system string) Session
}

type ChatResponse struct {
	Reply   string   `json:"reply"`
	Results []Result `json:"results"`
}

type Assistant struct {
	model  Model
	exec   *Executor
	logger *logging.Logger
}

func New(model Model, exec *Executor, logger *logging.Logger) *Assistant {
	if logger == nil {
		logger = logging.Default()
	}
	return &Assistant{model: model, exec: exec, logger: logger.Component("assistant")}
}

// Run decodes and executes one command.
func (a *Assistant) Run(ctx context.Context, actor frontdesk.Actor, name string, args json.RawMessage) (Result, error) {
	cmd, err := Decode(name, args)
	if err != nil {
		return Result{Command: name, Error: err.Error()}, err
	}
	return a.exec.Execute(ctx, actor, cmd)
}

// Chat sends text to the model and executes whatever commands it calls,
// feeding results back until it answers in text.
func (a *Assistant) Chat(ctx context.Context, actor frontdesk.Actor, text string) (ChatResponse, error) {
	if strings.TrimSpace(text) == "" {
		return ChatResponse{}, errors.New("assistant: message is empty")
	}
	if a.model == nil {
		return ChatResponse{}, ErrModelUnavailable
	}
	session := a.model.NewSession(systemPrompt(actor))
	reply, err := session.Send(ctx, text)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("assistant: send: %w", err)
	}

	out := ChatResponse{Results: []Result{}}
	for round := 0; len(reply.Calls) > 0; round++ {
		if round == maxToolRounds {
			a.logger.Warn("tool round limit reached", "user", actor.User.Username)
			break
		}
		results := make([]Result, 0, len(reply.Calls))
		for _, call := range reply.Calls {
			res, err := a.Run(ctx, actor, call.Name, call.Args)
			if err != nil {
				a.logger.Info("assistant command failed", "command", call.Name, "user", actor.User.Username, "error", err)
			}
			results = append(results, res)
		}
		out.Results = append(out.Results, results...)
		if reply, err = session.Respond(ctx, results); err != nil {
			return out, fmt.Errorf("assistant: respond: %w", err)
		}
	}
	out.Reply = reply.Text
	return out, nil
}

// ErrModelUnavailable is returned by Chat when no model is configured.
var ErrModelUnavailable = errors.New("assistant model is not configured")

func systemPrompt(actor frontdesk.Actor) string {
	var b strings.Builder
	b.WriteString("You help clinic front desk staff. Use the provided functions to read and change data; never invent ids. ")
	b.WriteString("Look patients up with find_patients before queueing them. ")
	b.WriteString("Status, gender, shift, and visit type values are Arabic labels; use them exactly as listed. ")
	fmt.Fprintf(&b, "The current user is %q with role %s.", actor.User.Name, actor.User.Role)
	if actor.User.ClinicID != 0 {
		fmt.Fprintf(&b, " Their clinic id is %d.", actor.User.ClinicID)
	}
	b.WriteString(" Reply in the language the user writes in.")
	return b.String()
}
