package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReply(t *testing.T) {
	t.Run("quit yields goodbye", func(t *testing.T) {
		reply, quit := Reply("Quit")
		assert.Equal(t, "Goodbye", reply)
		assert.True(t, quit)
	})

	t.Run("anything else yields ok", func(t *testing.T) {
		for _, msg := range []string{"hello", "", "quit", "Quit ", " Quit", "QuitQuit", "Goodbye"} {
			reply, quit := Reply(msg)
			assert.Equal(t, "OK", reply, "message %q", msg)
			assert.False(t, quit, "message %q", msg)
		}
	})
}

func TestIsQuitHandshake(t *testing.T) {
	assert.True(t, IsQuitHandshake("Quit", "Goodbye"))
	assert.False(t, IsQuitHandshake("Quit", "OK"))
	assert.False(t, IsQuitHandshake("hello", "Goodbye"))
	assert.False(t, IsQuitHandshake("quit", "Goodbye"))
}

func TestEncode(t *testing.T) {
	t.Run("text is sent verbatim", func(t *testing.T) {
		assert.Equal(t, []byte("hello"), Encode("hello"))
	})

	t.Run("empty message becomes a single NUL", func(t *testing.T) {
		got := Encode("")
		assert.Equal(t, []byte{0}, got)
		assert.Equal(t, "", Decode(got))
	})
}

func TestDecode(t *testing.T) {
	t.Run("stops at first NUL", func(t *testing.T) {
		assert.Equal(t, "OK", Decode([]byte("OK\x00odbye")))
	})

	t.Run("whole buffer without NUL", func(t *testing.T) {
		assert.Equal(t, "Goodbye", Decode([]byte("Goodbye")))
	})

	t.Run("empty buffer", func(t *testing.T) {
		assert.Equal(t, "", Decode(nil))
	})

	t.Run("embedded NUL truncates binary payload", func(t *testing.T) {
		assert.Equal(t, "ab", Decode([]byte{'a', 'b', 0, 'c'}))
	})
}

func TestReadMessage(t *testing.T) {
	t.Run("reads one message", func(t *testing.T) {
		msg, n, err := ReadMessage(strings.NewReader("hello"))
		require.NoError(t, err)
		assert.Equal(t, "hello", msg)
		assert.Equal(t, 5, n)
	})

	t.Run("short reply after long reply has no stale bytes", func(t *testing.T) {
		var stream bytes.Buffer
		stream.WriteString("Goodbye")
		first, _, err := ReadMessage(&stream)
		require.NoError(t, err)
		assert.Equal(t, "Goodbye", first)

		stream.WriteString("OK")
		second, _, err := ReadMessage(&stream)
		require.NoError(t, err)
		assert.Equal(t, "OK", second)
	})

	t.Run("caps a read at buffer size", func(t *testing.T) {
		payload := strings.Repeat("x", BufferSize+10)
		msg, n, err := ReadMessage(strings.NewReader(payload))
		require.NoError(t, err)
		assert.Equal(t, BufferSize, n)
		assert.Len(t, msg, BufferSize)
	})

	t.Run("end of stream", func(t *testing.T) {
		_, n, err := ReadMessage(strings.NewReader(""))
		assert.ErrorIs(t, err, io.EOF)
		assert.Zero(t, n)
	})

	t.Run("read error is passed through", func(t *testing.T) {
		_, _, err := ReadMessage(iotest.ErrReader(assert.AnError))
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("data with error returns data", func(t *testing.T) {
		msg, _, err := ReadMessage(iotest.DataErrReader(strings.NewReader("hi")))
		require.NoError(t, err)
		assert.Equal(t, "hi", msg)
	})
}

func TestDefaultPorts(t *testing.T) {
	assert.Equal(t, 12345, DefaultServerPort)
	assert.Equal(t, 123, DefaultClientPort)
	assert.NotEqual(t, DefaultServerPort, DefaultClientPort)
	assert.Equal(t, "127.0.0.1", DefaultClientHost)
}
