package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	commonpb "go.viam.com/api/common/v1"
	genericpb "go.viam.com/api/service/generic/v1"
	"go.viam.com/utils/protoutils"
	"google.golang.org/grpc"

	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/plan"
	"github.com/makolon/og-vlm/sim"
)

// Server exposes an environment built by a local backend over the bridge protocol. Engine errors
// are returned in the response's "error" key; malformed requests fail the RPC.
type Server struct {
	genericpb.UnimplementedGenericServiceServer

	backend string
	logger  logging.Logger

	mu  sync.Mutex
	env sim.Environment
}

// NewServer returns a server that constructs environments with the named backend on load.
func NewServer(backend string, logger logging.Logger) *Server {
	return &Server{backend: backend, logger: logger}
}

// Register registers the server on a gRPC service registrar.
func (s *Server) Register(registrar grpc.ServiceRegistrar) {
	genericpb.RegisterGenericServiceServer(registrar, s)
}

// DoCommand handles one bridge command.
func (s *Server) DoCommand(ctx context.Context, req *commonpb.DoCommandRequest) (*commonpb.DoCommandResponse, error) {
	cmd := req.GetCommand().AsMap()
	command := cast.ToString(cmd[keyCommand])

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.handle(ctx, command, cmd)
	if err != nil {
		var bad *badRequestError
		if errors.As(err, &bad) {
			return nil, err
		}
		s.logger.Debugw("engine error", "command", command, "error", err)
		result = map[string]interface{}{keyError: err.Error()}
	}
	if result == nil {
		result = map[string]interface{}{}
	}
	pb, err := protoutils.StructToStructPb(result)
	if err != nil {
		return nil, err
	}
	return &commonpb.DoCommandResponse{Result: pb}, nil
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

func badRequest(format string, args ...interface{}) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

func (s *Server) handle(ctx context.Context, command string, cmd map[string]interface{}) (map[string]interface{}, error) {
	if command == CommandLoad {
		return nil, s.load(ctx, cmd)
	}
	if s.env == nil {
		return nil, badRequest("%s before %s", command, CommandLoad)
	}

	switch command {
	case CommandReset:
		return nil, s.env.Reset(ctx)
	case CommandStep:
		action, err := actionFromWire(cmd["action"])
		if err != nil {
			return nil, badRequest("step: %v", err)
		}
		return nil, s.env.Step(ctx, action)
	case CommandObjects:
		objects, err := s.env.Objects(ctx)
		if err != nil {
			return nil, err
		}
		wire := make([]interface{}, 0, len(objects))
		for _, o := range objects {
			wire = append(wire, objectToWire(o))
		}
		return map[string]interface{}{"objects": wire}, nil
	case CommandAgentPosition:
		pos, err := s.env.AgentPosition(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"position": vectorToWire(pos)}, nil
	case CommandSetPosition:
		pos, err := vectorFromWire(cmd["position"])
		if err != nil {
			return nil, badRequest("set_position: %v", err)
		}
		return nil, s.env.SetPosition(ctx, cast.ToString(cmd["name"]), pos)
	case CommandGoalFraction:
		frac, ok, err := s.env.GoalFraction(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"fraction": frac, "ok": ok}, nil
	case CommandSnapshot:
		return s.snapshot(ctx)
	case CommandCapabilities:
		return s.capabilities(ctx), nil
	case CommandPrimitiveActions:
		return s.primitiveActions(ctx, cmd)
	case CommandClose:
		err := s.env.Close(ctx)
		s.env = nil
		return nil, err
	default:
		return nil, badRequest("unknown command %q", command)
	}
}

func (s *Server) load(ctx context.Context, cmd map[string]interface{}) error {
	if s.env != nil {
		if err := s.env.Close(ctx); err != nil {
			s.logger.Warnw("closing previous environment", "error", err)
		}
		s.env = nil
	}
	settings := sim.Settings{
		Activity: cast.ToString(cmd["activity"]),
		Robot:    cast.ToString(cmd["robot"]),
		Headless: cast.ToBool(cmd["headless"]),
		Seed:     cast.ToInt64(cmd["seed"]),
	}
	env, err := sim.New(ctx, s.backend, settings, s.logger)
	if err != nil {
		return err
	}
	s.env = env
	s.logger.Infow("environment loaded", "backend", s.backend, "activity", settings.Activity, "robot", settings.Robot)
	return nil
}

func (s *Server) snapshot(ctx context.Context) (map[string]interface{}, error) {
	img, ok, err := s.env.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]interface{}{"ok": false}, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return map[string]interface{}{"ok": true, "png": base64.StdEncoding.EncodeToString(buf.Bytes())}, nil
}

func (s *Server) capabilities(ctx context.Context) map[string]interface{} {
	if _, ok := s.env.(sim.PrimitiveProvider); !ok {
		return map[string]interface{}{"primitives": false, "reason": "environment provides no primitive actions"}
	}
	if prober, ok := s.env.(sim.PrimitiveProber); ok {
		if err := prober.ProbePrimitives(ctx); err != nil {
			return map[string]interface{}{"primitives": false, "reason": err.Error()}
		}
	}
	return map[string]interface{}{"primitives": true}
}

func (s *Server) primitiveActions(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	provider, ok := s.env.(sim.PrimitiveProvider)
	if !ok {
		return nil, sim.ErrPrimitivesUnsupported
	}
	names, err := cast.ToStringSliceE(cmd["objects"])
	if err != nil {
		return nil, badRequest("primitive_actions: %v", err)
	}
	objects, err := s.env.Objects(ctx)
	if err != nil {
		return nil, err
	}
	args := make([]sim.Object, 0, len(names))
	for _, name := range names {
		obj, found := sim.FindObject(objects, name)
		if !found {
			return nil, errors.Errorf("no object named %q", name)
		}
		args = append(args, obj)
	}
	op, _ := plan.ParseOp(cast.ToString(cmd["op"]))
	actions, err := provider.PrimitiveActions(ctx, op, args...)
	if err != nil {
		return nil, err
	}
	wire := make([]interface{}, 0, len(actions))
	for _, a := range actions {
		wire = append(wire, actionToWire(a))
	}
	return map[string]interface{}{"actions": wire}, nil
}
