// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"fmt"

	"github.com/gebr-project/gebr/lib/prompt"
	"github.com/gebr-project/gebr/lib/protocol"
	"github.com/gebr-project/gebr/lib/request"
)

// handlePassword relays PSS (address, accepts-key). An accepted answer
// retries the daemon connection with the password; a declined one
// leaves the daemon disconnected.
func (c *Coordinator) handlePassword(message protocol.Message) {
	address := message.Field(0)
	c.relay(prompt.Request{
		Kind:       prompt.KindPassword,
		Address:    address,
		AcceptsKey: message.Field(1) == "true",
		Title:      "Password required",
		Text:       fmt.Sprintf("Enter the password for %s.", address),
	}, func(answer prompt.Answer) string {
		if !answer.Accepted {
			return ""
		}
		return request.ConnectWorker(address, answer.Password)
	})
}

// handleQuestion relays QST (address, title, question).
func (c *Coordinator) handleQuestion(message protocol.Message) {
	address := message.Field(0)
	c.relay(prompt.Request{
		Kind:    prompt.KindQuestion,
		Address: address,
		Title:   message.Field(1),
		Text:    message.Field(2),
	}, func(answer prompt.Answer) string {
		return request.AnswerQuestion(address, answer.Accepted)
	})
}

// handleConfirm relays CFRM (address, action).
func (c *Coordinator) handleConfirm(message protocol.Message) {
	address, action := message.Field(0), message.Field(1)
	c.relay(prompt.Request{
		Kind:    prompt.KindConfirm,
		Address: address,
		Action:  action,
		Title:   "Confirm action",
		Text:    fmt.Sprintf("Confirm %s on %s?", action, address),
	}, func(answer prompt.Answer) string {
		return request.AnswerConfirm(address, action, answer.Accepted)
	})
}

// relay hands pending to the prompter and, once the answer comes
// back, sends the request reply builds for it. An empty reply sends
// nothing. The prompter may answer from any goroutine; only the first
// answer counts.
func (c *Coordinator) relay(pending prompt.Request, reply func(prompt.Answer) string) {
	pending.ID = prompt.NextID()
	c.prompts[pending.ID] = pending

	c.prompter.Prompt(pending, func(answer prompt.Answer) {
		c.loop.Post(func() { c.answered(pending.ID, answer, reply) })
	})
}

func (c *Coordinator) answered(id uint64, answer prompt.Answer, reply func(prompt.Answer) string) {
	pending, ok := c.prompts[id]
	if !ok {
		c.logger.Debug("dropping answer to a closed prompt", "prompt", id)
		return
	}
	delete(c.prompts, id)

	url := reply(answer)
	if url == "" {
		return
	}
	if err := c.send(url, nil); err != nil {
		c.logger.Warn("sending prompt answer", "address", pending.Address, "kind", pending.Kind, "error", err)
	}
}
