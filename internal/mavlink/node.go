// Package mavlink wraps the MAVLink transport the payload controller speaks
// to the autopilot over. The wire codec and routing themselves are a
// collaborator outside this repository's scope; this package
// only wires gomavlib.Node construction and exposes the narrow Sender
// interface the rest of the controller depends on.
package mavlink

import (
	"fmt"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
)

// EndpointConfig describes one transport endpoint for the node, mirroring
// gomavlib's own endpoint configuration union.
type EndpointConfig struct {
	Kind    string `yaml:"kind"` // "serial", "udp-server", "udp-client"
	Address string `yaml:"address"`
	BaudRate int   `yaml:"baudRate"`
}

// Config configures a Node.
type Config struct {
	Endpoints  []EndpointConfig `yaml:"endpoints"`
	SystemID   byte             `yaml:"systemId"`
	ComponentID byte            `yaml:"componentId"`
}

// Sender is the narrow interface the switcher, mission executor, and
// telemetry source depend on instead of the concrete gomavlib.Node, so
// they can be exercised in tests without a live transport.
type Sender interface {
	Send(msg gomavlib.Message) error
	SendTo(channel *gomavlib.Channel, msg gomavlib.Message) error
}

// Node wraps a gomavlib.Node, exposing its raw event channel and the Sender
// methods to the rest of the controller.
type Node struct {
	node *gomavlib.Node
}

// Open constructs and starts a gomavlib node from cfg.
func Open(cfg Config) (*Node, error) {
	var endpoints []gomavlib.EndpointConf
	for _, e := range cfg.Endpoints {
		switch e.Kind {
		case "serial":
			endpoints = append(endpoints, gomavlib.EndpointSerial{Device: e.Address, Baud: e.BaudRate})
		case "udp-server":
			endpoints = append(endpoints, gomavlib.EndpointUDPServer{Address: e.Address})
		case "udp-client":
			endpoints = append(endpoints, gomavlib.EndpointUDPClient{Address: e.Address})
		default:
			return nil, fmt.Errorf("mavlink: unknown endpoint kind %q", e.Kind)
		}
	}

	n, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:   endpoints,
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: cfg.SystemID,
	})
	if err != nil {
		return nil, fmt.Errorf("mavlink: opening node: %w", err)
	}

	return &Node{node: n}, nil
}

// Close shuts down the underlying transport.
func (n *Node) Close() { n.node.Close() }

// Events exposes the node's raw event stream.
func (n *Node) Events() chan gomavlib.Event { return n.node.Events() }

// Send broadcasts msg to every connected channel.
func (n *Node) Send(msg gomavlib.Message) error {
	return n.node.WriteMessageAll(msg)
}

// SendTo sends msg to a single channel, used for point-to-point command
// acknowledgements and paginated record responses.
func (n *Node) SendTo(channel *gomavlib.Channel, msg gomavlib.Message) error {
	return n.node.WriteMessageTo(channel, msg)
}
