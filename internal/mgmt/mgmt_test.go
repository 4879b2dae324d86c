package mgmt_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ccnx-go/ccnd/internal/face"
	"github.com/ccnx-go/ccnd/internal/mgmt"
	"github.com/ccnx-go/ccnd/internal/sched"
	"github.com/ccnx-go/ccnd/internal/security"
	"github.com/ccnx-go/ccnd/internal/table"
	"github.com/ccnx-go/ccnd/internal/wire"
)

type fakeTransport struct{ closed bool }

func (f *fakeTransport) Send(b []byte) error { return nil }
func (f *fakeTransport) RecvFD() int         { return -1 }
func (f *fakeTransport) SendFD() int         { return -1 }
func (f *fakeTransport) PeerAddr() net.Addr  { return &net.TCPAddr{} }
func (f *fakeTransport) Close() error        { f.closed = true; return nil }

func newTestClient(t *testing.T) *mgmt.Client {
	t.Helper()
	signer, err := security.NewSigner()
	require.NoError(t, err)
	dial := func(network, addr string) (face.Transport, error) {
		return &fakeTransport{}, nil
	}
	return mgmt.NewClient(table.NewNameTree(), face.NewTable(), table.NewCS(0, stubScheduler{}, nil), signer, dial)
}

type stubScheduler struct{}

func (stubScheduler) Schedule(delayUs int64, cb sched.Callback) sched.Handle { return sched.Handle{} }
func (stubScheduler) Cancel(h sched.Handle)                                  {}

func interestFor(name string) *wire.Interest {
	return &wire.Interest{Name: wire.NameFromStr(name)}
}

func TestHandlePingReturnsSignedFreshContentObject(t *testing.T) {
	c := newTestClient(t)
	co, ok := c.Handle(1, true, interestFor("/ccn/ping"))
	require.True(t, ok)
	require.NotNil(t, co)
	require.True(t, co.HasFreshness)
	require.NotEmpty(t, co.Signature)
}

func TestHandleRegSelfRejectsNonFriendlyFace(t *testing.T) {
	c := newTestClient(t)
	co, ok := c.Handle(1, false, interestFor("/ccn/reg/self/prefix=%2Fa%2Fb"))
	require.False(t, ok)
	require.Nil(t, co)
}

func TestHandleRegSelfAddsForwardingEntry(t *testing.T) {
	c := newTestClient(t)
	co, ok := c.Handle(7, true, interestFor("/ccn/reg/self/prefix=%2Fa%2Fb"))
	require.True(t, ok)
	require.NotNil(t, co)

	pe := c.Tree.Seek(wire.NameFromStr("/a/b"), -1)
	found := false
	for _, fe := range pe.FIB() {
		if fe.FaceID == 7 {
			found = true
		}
	}
	require.True(t, found)
}

func TestHandleNewfaceEnrollsFaceViaDial(t *testing.T) {
	c := newTestClient(t)
	np := "/ccn/" + c.Signer.NodeIDHex()
	co, ok := c.Handle(1, true, interestFor(np+"/newface/network=tcp&addr=192.0.2.1&port=6363"))
	require.True(t, ok)
	require.NotNil(t, co)
	require.Contains(t, string(co.Content), "faceid=")
}

func TestHandlePrefixregRejectsUnknownFace(t *testing.T) {
	c := newTestClient(t)
	np := "/ccn/" + c.Signer.NodeIDHex()
	co, ok := c.Handle(1, true, interestFor(np+"/prefixreg/prefix=%2Fa&faceid=999"))
	require.True(t, ok)
	require.Contains(t, string(co.Content), "error")
}

func TestHandleListReportsEnrolledFaces(t *testing.T) {
	c := newTestClient(t)
	f := face.NewFace(&fakeTransport{}, face.FlagLocal, 8800)
	_, ok := c.Faces.Enroll(f)
	require.True(t, ok)

	np := "/ccn/" + c.Signer.NodeIDHex()
	co, handled := c.Handle(1, true, interestFor(np+"/list"))
	require.True(t, handled)
	require.Contains(t, string(co.Content), "faceid=")
}

func TestHandleCsInfoAndConfig(t *testing.T) {
	c := newTestClient(t)
	np := "/ccn/" + c.Signer.NodeIDHex()

	co, ok := c.Handle(1, true, interestFor(np+"/cs/info"))
	require.True(t, ok)
	require.Contains(t, string(co.Content), "capacity=0")

	co, ok = c.Handle(1, true, interestFor(np+"/cs/config/capacity=500"))
	require.True(t, ok)
	require.Contains(t, string(co.Content), "capacity=500")
	require.Equal(t, 500, c.CS.Capacity)
}
