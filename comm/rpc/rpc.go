// Package rpc carries communicator traffic between processes over gRPC.
//
// Every rank serves a mailbox. A send is a unary call that places the
// envelope in the destination's mailbox; a receive takes from the local one.
// Envelopes are gob encoded through a codec registered with gRPC, so no
// generated protobuf code is involved.
package rpc

import (
	"bytes"
	"context"
	"encoding/gob"
	"net"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/sbromberger/jacobi/comm"
)

const (
	codecName     = "gob"
	serviceName   = "jacobi.Mailbox"
	deliverMethod = "/" + serviceName + "/Deliver"
)

type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// Ack is the reply to a delivered envelope.
type Ack struct {
	Rank int
}

type mailboxServer interface {
	Deliver(ctx context.Context, e *comm.Envelope) (*Ack, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*mailboxServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: deliverHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jacobi/comm/rpc",
}

func deliverHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(comm.Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(mailboxServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: deliverMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(mailboxServer).Deliver(ctx, req.(*comm.Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

type server struct {
	rank int
	mb   *comm.Mailbox
}

func (s *server) Deliver(ctx context.Context, e *comm.Envelope) (*Ack, error) {
	s.mb.Put(e.Key, e.Data)
	return &Ack{Rank: s.rank}, nil
}

// Node is one rank's endpoint: a mailbox server plus lazily dialed clients
// to every peer.
type Node struct {
	rank  int
	peers []string
	mb    *comm.Mailbox
	srv   *grpc.Server

	mu    sync.Mutex
	conns map[int]*grpc.ClientConn
}

// Listen opens peers[rank] and serves the mailbox on it.
func Listen(rank int, peers []string) (*Node, error) {
	if rank < 0 || rank >= len(peers) {
		return nil, errors.Wrapf(comm.ErrRank, "rpc: rank %d with %d peers", rank, len(peers))
	}
	lis, err := net.Listen("tcp", peers[rank])
	if err != nil {
		return nil, errors.Wrapf(err, "rpc: listen on %s", peers[rank])
	}
	return Serve(rank, peers, lis)
}

// Serve serves the mailbox on an already open listener. peers[rank] must be
// the address other ranks reach lis on.
func Serve(rank int, peers []string, lis net.Listener) (*Node, error) {
	if rank < 0 || rank >= len(peers) {
		return nil, errors.Wrapf(comm.ErrRank, "rpc: rank %d with %d peers", rank, len(peers))
	}
	n := &Node{
		rank:  rank,
		peers: peers,
		mb:    comm.NewMailbox(),
		srv:   grpc.NewServer(),
		conns: make(map[int]*grpc.ClientConn),
	}
	n.srv.RegisterService(&serviceDesc, &server{rank: rank, mb: n.mb})
	go func() {
		if err := n.srv.Serve(lis); err != nil {
			glog.Errorf("%d: mailbox server on %s stopped: %v", rank, lis.Addr(), err)
		}
	}()
	glog.V(1).Infof("%d: serving mailbox on %s", rank, lis.Addr())
	return n, nil
}

// World returns the communicator spanning every peer.
func (n *Node) World() (*comm.Group, error) {
	return comm.NewWorld(n, n.rank, len(n.peers))
}

func (n *Node) conn(dst int) (*grpc.ClientConn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if cc, found := n.conns[dst]; found {
		return cc, nil
	}
	cc, err := grpc.NewClient(n.peers[dst], grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Wrapf(err, "rpc: dial rank %d at %s", dst, n.peers[dst])
	}
	n.conns[dst] = cc
	return cc, nil
}

// Deliver implements comm.Transport. Calls wait for the peer to come up, so
// ranks may be started in any order.
func (n *Node) Deliver(dst int, e comm.Envelope) error {
	if dst < 0 || dst >= len(n.peers) {
		return errors.Wrapf(comm.ErrRank, "rpc: deliver to %d", dst)
	}
	if dst == n.rank {
		n.mb.Put(e.Key, e.Data)
		return nil
	}
	cc, err := n.conn(dst)
	if err != nil {
		return err
	}
	var ack Ack
	err = cc.Invoke(context.Background(), deliverMethod, &e, &ack,
		grpc.WaitForReady(true), grpc.CallContentSubtype(codecName))
	return errors.Wrapf(err, "rpc: deliver %s to rank %d at %s", e.Key, dst, n.peers[dst])
}

// Collect implements comm.Transport.
func (n *Node) Collect(k comm.Key) ([]float64, error) {
	return n.mb.Take(k), nil
}

// Close drops all client connections and stops the server once the calls
// it is serving have been answered. A peer's last send may still be
// waiting on its reply after this rank has taken the envelope.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	var first error
	for dst, cc := range n.conns {
		if err := cc.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "rpc: close connection to rank %d", dst)
		}
		delete(n.conns, dst)
	}
	n.srv.GracefulStop()
	return first
}
