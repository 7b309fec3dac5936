// Copyright 2026 The cmlids Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package p4rt connects the controller to a switch over P4Runtime. It
// becomes the primary client through master arbitration, pushes the
// forwarding pipeline, installs table entries, reads counters and exchanges
// packet-in and packet-out messages on the stream channel.
package p4rt

import (
	"context"
	"errors"
	"io"
	"sync"

	grpcprom "github.com/grpc-ecosystem/go-grpc-prometheus"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cml-ids/cmlids/pkg/log"
	"github.com/cml-ids/cmlids/pkg/p4info"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/pkg/protocol"
	"github.com/cml-ids/cmlids/pkg/rulegen"
)

var (
	// ErrNotPrimary indicates that the switch elected another client.
	ErrNotPrimary = errors.New("not the primary controller")
	// ErrNoStream indicates use of the stream channel before arbitration.
	ErrNoStream = errors.New("stream channel not established")
)

// Config describes how to reach the switch.
type Config struct {
	// Address is the gRPC address of the switch, e.g. "127.0.0.1:50051".
	Address string
	// DeviceID is the P4Runtime device id.
	DeviceID uint64
	// ElectionID is the low half of the election id; the high half is zero.
	ElectionID uint64
}

// CounterData is the value of a counter cell.
type CounterData struct {
	Index       int64
	ByteCount   int64
	PacketCount int64
}

// Client is a P4Runtime client for a single device.
type Client struct {
	cfg        Config
	rt         p4v1.P4RuntimeClient
	conn       io.Closer
	desc       *p4info.Descriptor
	translator *Translator

	mtx    sync.Mutex
	stream p4v1.P4Runtime_StreamChannelClient
	cancel context.CancelFunc
	// sendMtx serializes writes on the stream; gRPC streams allow one
	// concurrent sender.
	sendMtx sync.Mutex
}

// Dial opens a plaintext gRPC connection to the switch. The connection is
// closed by Client.Close. Calls are instrumented with the grpc_client_*
// metrics of the default prometheus registry.
func Dial(cfg Config, desc *p4info.Descriptor, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(grpcprom.UnaryClientInterceptor),
		grpc.WithChainStreamInterceptor(grpcprom.StreamClientInterceptor),
	}, opts...)
	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, serrors.Wrap("creating grpc client", err, "address", cfg.Address)
	}
	c := New(conn, cfg, desc)
	c.conn = conn
	return c, nil
}

// New returns a client on an existing connection. The caller owns conn.
func New(conn grpc.ClientConnInterface, cfg Config, desc *p4info.Descriptor) *Client {
	return &Client{
		cfg:        cfg,
		rt:         p4v1.NewP4RuntimeClient(conn),
		desc:       desc,
		translator: NewTranslator(desc),
	}
}

func (c *Client) electionID() *p4v1.Uint128 {
	return &p4v1.Uint128{High: 0, Low: c.cfg.ElectionID}
}

// Arbitrate opens the stream channel and requests primary status. It returns
// once the switch answered or ctx is done. The stream outlives ctx and is
// torn down by Close.
func (c *Client) Arbitrate(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	stream, err := c.rt.StreamChannel(streamCtx)
	if err != nil {
		cancel()
		return serrors.Wrap("opening stream channel", err, "address", c.cfg.Address)
	}
	err = stream.Send(&p4v1.StreamMessageRequest{
		Update: &p4v1.StreamMessageRequest_Arbitration{
			Arbitration: &p4v1.MasterArbitrationUpdate{
				DeviceId:   c.cfg.DeviceID,
				ElectionId: c.electionID(),
			},
		},
	})
	if err != nil {
		cancel()
		return serrors.Wrap("sending arbitration", err)
	}
	for {
		msg, err := stream.Recv()
		if err != nil {
			cancel()
			return serrors.Wrap("receiving arbitration", err)
		}
		arb := msg.GetArbitration()
		if arb == nil {
			continue
		}
		if code := arb.GetStatus().GetCode(); code != int32(codes.OK) {
			cancel()
			return serrors.Join(ErrNotPrimary, nil,
				"code", codes.Code(code), "msg", arb.GetStatus().GetMessage())
		}
		break
	}
	c.mtx.Lock()
	c.stream, c.cancel = stream, cancel
	c.mtx.Unlock()
	log.FromCtx(ctx).Info("Became primary controller",
		"device_id", c.cfg.DeviceID, "election_id", c.cfg.ElectionID)
	return nil
}

// SetPipeline installs the forwarding pipeline on the device.
func (c *Client) SetPipeline(ctx context.Context, cfg *p4v1.ForwardingPipelineConfig) error {
	_, err := c.rt.SetForwardingPipelineConfig(ctx, &p4v1.SetForwardingPipelineConfigRequest{
		DeviceId:   c.cfg.DeviceID,
		ElectionId: c.electionID(),
		Action:     p4v1.SetForwardingPipelineConfigRequest_VERIFY_AND_COMMIT,
		Config:     cfg,
	})
	if err != nil {
		return serrors.Wrap("setting forwarding pipeline", err, "device_id", c.cfg.DeviceID)
	}
	return nil
}

// InsertRule installs a comparison table rule.
func (c *Client) InsertRule(ctx context.Context, r rulegen.Rule) error {
	entry, err := c.translator.RuleEntry(r)
	if err != nil {
		return err
	}
	return c.insert(ctx, entry)
}

// InsertForward installs a forwarding route.
func (c *Client) InsertForward(ctx context.Context, e rulegen.ForwardEntry) error {
	entry, err := c.translator.ForwardEntry(e)
	if err != nil {
		return err
	}
	return c.insert(ctx, entry)
}

func (c *Client) insert(ctx context.Context, entry *p4v1.TableEntry) error {
	_, err := c.rt.Write(ctx, &p4v1.WriteRequest{
		DeviceId:   c.cfg.DeviceID,
		ElectionId: c.electionID(),
		Updates: []*p4v1.Update{{
			Type:   p4v1.Update_INSERT,
			Entity: &p4v1.Entity{Entity: &p4v1.Entity_TableEntry{TableEntry: entry}},
		}},
	})
	if err != nil {
		return serrors.Wrap("writing table entry", err, "table_id", entry.GetTableId())
	}
	return nil
}

// ReadCounter reads a cell of the named counter.
func (c *Client) ReadCounter(ctx context.Context, name string, index int64) (CounterData, error) {
	counter, err := c.desc.Counter(name)
	if err != nil {
		return CounterData{}, err
	}
	stream, err := c.rt.Read(ctx, &p4v1.ReadRequest{
		DeviceId: c.cfg.DeviceID,
		Entities: []*p4v1.Entity{{
			Entity: &p4v1.Entity_CounterEntry{CounterEntry: &p4v1.CounterEntry{
				CounterId: counter.ID,
				Index:     &p4v1.Index{Index: index},
			}},
		}},
	})
	if err != nil {
		return CounterData{}, serrors.Wrap("reading counter", err, "counter", name)
	}
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return CounterData{}, serrors.Wrap("reading counter", err, "counter", name)
		}
		for _, e := range resp.GetEntities() {
			ce := e.GetCounterEntry()
			if ce == nil || ce.GetCounterId() != counter.ID || ce.GetIndex().GetIndex() != index {
				continue
			}
			return CounterData{
				Index:       index,
				ByteCount:   ce.GetData().GetByteCount(),
				PacketCount: ce.GetData().GetPacketCount(),
			}, nil
		}
	}
	return CounterData{}, serrors.New("counter cell not returned",
		"counter", name, "index", index)
}

// Recv blocks until the next packet-in arrives and returns its metadata.
// Other stream messages are skipped. If ctx is done the stream is torn down.
func (c *Client) Recv(ctx context.Context) ([]protocol.Metadata, error) {
	stream, cancel, err := c.streamChannel()
	if err != nil {
		return nil, err
	}
	defer context.AfterFunc(ctx, cancel)()
	for {
		msg, err := stream.Recv()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, serrors.Wrap("receiving from stream", err)
		}
		pkt := msg.GetPacket()
		if pkt == nil {
			log.FromCtx(ctx).Debug("Ignoring stream message", "msg", msg.String())
			continue
		}
		md := make([]protocol.Metadata, 0, len(pkt.GetMetadata()))
		for _, m := range pkt.GetMetadata() {
			md = append(md, protocol.Metadata{ID: m.GetMetadataId(), Value: m.GetValue()})
		}
		return md, nil
	}
}

// Send emits a packet-out with the given metadata and an empty payload.
func (c *Client) Send(_ context.Context, md []protocol.Metadata) error {
	stream, _, err := c.streamChannel()
	if err != nil {
		return err
	}
	out := &p4v1.PacketOut{Metadata: make([]*p4v1.PacketMetadata, 0, len(md))}
	for _, m := range md {
		out.Metadata = append(out.Metadata,
			&p4v1.PacketMetadata{MetadataId: m.ID, Value: m.Value})
	}
	c.sendMtx.Lock()
	defer c.sendMtx.Unlock()
	err = stream.Send(&p4v1.StreamMessageRequest{
		Update: &p4v1.StreamMessageRequest_Packet{Packet: out},
	})
	if err != nil {
		return serrors.Wrap("sending packet-out", err)
	}
	return nil
}

func (c *Client) streamChannel() (p4v1.P4Runtime_StreamChannelClient, context.CancelFunc, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.stream == nil {
		return nil, nil, ErrNoStream
	}
	return c.stream, c.cancel, nil
}

// Close tears down the stream channel and, if the client dialed it, the
// connection.
func (c *Client) Close() error {
	c.mtx.Lock()
	if c.stream != nil {
		_ = c.stream.CloseSend()
		c.cancel()
		c.stream = nil
	}
	c.mtx.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
