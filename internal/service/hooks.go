package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/shipdesk/pkg/logger"
)

// hook 事务提交之后执行的副作用
type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// runPostCommit 顺序执行副作用。失败和 panic 只记录日志，不影响已提交的结果。
func runPostCommit(ctx context.Context, fields []zap.Field, hooks ...hook) {
	// 客户端断开后仍需完成
	ctx = context.WithoutCancel(ctx)
	for _, h := range hooks {
		if err := safeRun(ctx, h); err != nil {
			logger.Warn("post-commit hook failed", append(fields, zap.String("hook", h.name), zap.Error(err))...)
		}
	}
}

func safeRun(ctx context.Context, h hook) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.fn(ctx)
}
