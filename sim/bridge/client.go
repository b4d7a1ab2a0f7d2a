package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
	commonpb "go.viam.com/api/common/v1"
	genericpb "go.viam.com/api/service/generic/v1"
	"go.viam.com/utils/protoutils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/plan"
	"github.com/makolon/og-vlm/sim"
)

// BackendName is the name the bridge backend is registered under.
const BackendName = "bridge"

func init() {
	sim.RegisterBackend(BackendName, func(
		ctx context.Context, settings sim.Settings, logger logging.Logger,
	) (sim.Environment, error) {
		return Dial(ctx, settings, logger)
	})
}

// Client is a sim.Environment backed by a remote engine. It is also a sim.PrimitiveProvider; the
// engine reports whether it actually supports primitives through ProbePrimitives.
type Client struct {
	conn   *grpc.ClientConn
	client genericpb.GenericServiceClient
	name   string
	logger logging.Logger
}

// Dial connects to the engine at settings.Address and loads the activity.
func Dial(ctx context.Context, settings sim.Settings, logger logging.Logger) (*Client, error) {
	if settings.Address == "" {
		return nil, errors.New("bridge backend requires an engine address")
	}
	conn, err := grpc.NewClient(settings.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to engine at %s", settings.Address)
	}
	c := NewClientFromConn(conn, DefaultResourceName, logger)
	c.conn = conn
	if err := c.Load(ctx, settings); err != nil {
		return nil, multierr.Combine(err, conn.Close())
	}
	return c, nil
}

// NewClientFromConn returns a client addressing the named engine over conn. The caller keeps
// ownership of conn.
func NewClientFromConn(conn grpc.ClientConnInterface, name string, logger logging.Logger) *Client {
	return &Client{client: genericpb.NewGenericServiceClient(conn), name: name, logger: logger}
}

func (c *Client) do(ctx context.Context, command string, args map[string]interface{}) (map[string]interface{}, error) {
	cmd := map[string]interface{}{keyCommand: command}
	for k, v := range args {
		cmd[k] = v
	}
	pbCommand, err := protoutils.StructToStructPb(cmd)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s command", command)
	}
	resp, err := c.client.DoCommand(ctx, &commonpb.DoCommandRequest{Name: c.name, Command: pbCommand})
	if err != nil {
		return nil, errors.Wrapf(err, "engine %s", command)
	}
	result := resp.GetResult().AsMap()
	if msg, ok := result[keyError]; ok {
		return result, &RemoteError{Command: command, Msg: cast.ToString(msg)}
	}
	return result, nil
}

// RemoteError is an error the engine reported in its response rather than through the transport.
type RemoteError struct {
	Command string
	Msg     string
}

func (e *RemoteError) Error() string {
	return "engine " + e.Command + ": " + e.Msg
}

// Load asks the engine to bootstrap an activity.
func (c *Client) Load(ctx context.Context, settings sim.Settings) error {
	_, err := c.do(ctx, CommandLoad, map[string]interface{}{
		"activity": settings.Activity,
		"robot":    settings.Robot,
		"headless": settings.Headless,
		"seed":     float64(settings.Seed),
	})
	return err
}

// Reset implements sim.Environment.
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.do(ctx, CommandReset, nil)
	return err
}

// Step implements sim.Environment.
func (c *Client) Step(ctx context.Context, action sim.Action) error {
	_, err := c.do(ctx, CommandStep, map[string]interface{}{"action": actionToWire(action)})
	return err
}

// Objects implements sim.Environment.
func (c *Client) Objects(ctx context.Context) ([]sim.Object, error) {
	result, err := c.do(ctx, CommandObjects, nil)
	if err != nil {
		return nil, err
	}
	var resp objectsResponse
	if err := decode(result, &resp); err != nil {
		return nil, errors.Wrap(err, "decoding objects")
	}
	out := make([]sim.Object, 0, len(resp.Objects))
	for _, w := range resp.Objects {
		obj, err := w.object()
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// AgentPosition implements sim.Environment.
func (c *Client) AgentPosition(ctx context.Context) (r3.Vector, error) {
	result, err := c.do(ctx, CommandAgentPosition, nil)
	if err != nil {
		return r3.Vector{}, err
	}
	pos, err := vectorFromWire(result["position"])
	if err != nil {
		return r3.Vector{}, errors.Wrap(err, "decoding agent position")
	}
	return pos, nil
}

// SetPosition implements sim.Environment.
func (c *Client) SetPosition(ctx context.Context, name string, pos r3.Vector) error {
	_, err := c.do(ctx, CommandSetPosition, map[string]interface{}{
		"name":     name,
		"position": vectorToWire(pos),
	})
	return err
}

// GoalFraction implements sim.Environment.
func (c *Client) GoalFraction(ctx context.Context) (float64, bool, error) {
	result, err := c.do(ctx, CommandGoalFraction, nil)
	if err != nil {
		return 0, false, err
	}
	var resp goalFractionResponse
	if err := decode(result, &resp); err != nil {
		return 0, false, errors.Wrap(err, "decoding goal fraction")
	}
	return resp.Fraction, resp.OK, nil
}

// Snapshot implements sim.Environment.
func (c *Client) Snapshot(ctx context.Context) (image.Image, bool, error) {
	result, err := c.do(ctx, CommandSnapshot, nil)
	if err != nil {
		return nil, false, err
	}
	var resp snapshotResponse
	if err := decode(result, &resp); err != nil {
		return nil, false, errors.Wrap(err, "decoding snapshot")
	}
	if !resp.OK {
		return nil, false, nil
	}
	raw, err := base64.StdEncoding.DecodeString(resp.PNG)
	if err != nil {
		return nil, false, errors.Wrap(err, "decoding snapshot")
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, false, errors.Wrap(err, "decoding snapshot")
	}
	return img, true, nil
}

// ProbePrimitives implements sim.PrimitiveProber.
func (c *Client) ProbePrimitives(ctx context.Context) error {
	result, err := c.do(ctx, CommandCapabilities, nil)
	if err != nil {
		return err
	}
	var resp capabilitiesResponse
	if err := decode(result, &resp); err != nil {
		return errors.Wrap(err, "decoding capabilities")
	}
	if !resp.Primitives {
		return errors.Wrap(sim.ErrPrimitivesUnsupported, resp.Reason)
	}
	return nil
}

// PrimitiveActions implements sim.PrimitiveProvider. Objects are sent by name.
func (c *Client) PrimitiveActions(ctx context.Context, op plan.Op, objects ...sim.Object) ([]sim.Action, error) {
	names := make([]interface{}, 0, len(objects))
	for _, o := range objects {
		names = append(names, o.Name)
	}
	result, err := c.do(ctx, CommandPrimitiveActions, map[string]interface{}{
		"op":      string(op),
		"objects": names,
	})
	var remote *RemoteError
	if errors.As(err, &remote) {
		return nil, sim.RejectAction(err)
	}
	if err != nil {
		return nil, err
	}
	items, err := cast.ToSliceE(result["actions"])
	if err != nil {
		return nil, errors.Wrap(err, "decoding primitive actions")
	}
	actions := make([]sim.Action, 0, len(items))
	for _, item := range items {
		a, err := actionFromWire(item)
		if err != nil {
			return nil, errors.Wrap(err, "decoding primitive actions")
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// Close asks the engine to release the environment and, for dialed clients, closes the
// connection.
func (c *Client) Close(ctx context.Context) error {
	_, err := c.do(ctx, CommandClose, nil)
	if c.conn != nil {
		err = multierr.Combine(err, c.conn.Close())
	}
	return err
}
