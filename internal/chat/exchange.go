// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/stream"
)

// Exchange is one send and its reply.
type Exchange struct {
	ConversationID string
	UserMessage    model.Message

	done      chan struct{}
	reply     model.Message
	committed bool
	result    stream.Result
	err       error
}

func newExchange(convID string, user model.Message) *Exchange {
	return &Exchange{ConversationID: convID, UserMessage: user, done: make(chan struct{})}
}

// Done is closed when the conversation is back to Idle.
func (e *Exchange) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the exchange finishes or ctx is done. The returned
// message is the committed assistant reply; it is set even when err is a
// *stream.StreamError, as long as partial content was received.
func (e *Exchange) Wait(ctx context.Context) (model.Message, error) {
	select {
	case <-e.done:
		return e.reply, e.err
	case <-ctx.Done():
		return model.Message{}, ctx.Err()
	}
}

// Committed reports whether an assistant message was added. Valid after Done.
func (e *Exchange) Committed() bool {
	<-e.done
	return e.committed
}

// Result returns the assembler result. Valid after Done.
func (e *Exchange) Result() stream.Result {
	<-e.done
	return e.result
}

func (e *Exchange) finish(reply model.Message, committed bool, res stream.Result, err error) {
	e.reply, e.committed, e.result, e.err = reply, committed, res, err
	close(e.done)
}
