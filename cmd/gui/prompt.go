package main

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"coworkshell/pkg/domain"
)

var errUnknownPrompt = errors.New("输入框已失效")

// promptRequest 推送给前端的输入框请求
type promptRequest struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	DefaultText string `json:"defaultText"`
}

type promptAnswer struct {
	accepted bool
	text     string
}

// promptBroker 把页面 prompt 转成前端输入框，并等待前端回答
type promptBroker struct {
	mu      sync.Mutex
	pending map[string]chan promptAnswer
	emit    func(promptRequest)
}

func newPromptBroker(emit func(promptRequest)) *promptBroker {
	return &promptBroker{pending: make(map[string]chan promptAnswer), emit: emit}
}

// Ask 发出请求并阻塞到前端回答或 ctx 结束
func (b *promptBroker) Ask(ctx context.Context, d domain.Dialog) (domain.DialogResult, error) {
	id := uuid.NewString()
	ch := make(chan promptAnswer, 1)
	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()
	defer b.drop(id)

	b.emit(promptRequest{ID: id, Message: d.Message, DefaultText: d.DefaultText})
	select {
	case <-ctx.Done():
		return domain.DialogResult{}, ctx.Err()
	case a := <-ch:
		if !a.accepted {
			return domain.DialogResult{}, nil
		}
		text := a.text
		return domain.DialogResult{Accepted: true, Text: &text}, nil
	}
}

// Answer 前端提交回答；每个请求只接受一次
func (b *promptBroker) Answer(id string, accepted bool, text string) error {
	b.mu.Lock()
	ch, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()
	if !ok {
		return errUnknownPrompt
	}
	ch <- promptAnswer{accepted: accepted, text: text}
	return nil
}

func (b *promptBroker) drop(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}
