package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelURLEscapesIdentity(t *testing.T) {
	got := channelURL("ws://127.0.0.1:3001/ws", "u1", "John & Jane Doe")
	assert.Equal(t, "ws://127.0.0.1:3001/ws?name=John+%26+Jane+Doe&userId=u1", got)
}

func TestChannelURLOmitsEmptyName(t *testing.T) {
	assert.Equal(t, "ws://host/ws?userId=u1", channelURL("ws://host/ws", "u1", ""))
}
