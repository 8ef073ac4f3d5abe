package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/shipdesk/config"
	"github.com/d60-Lab/shipdesk/internal/app"
	"github.com/d60-Lab/shipdesk/pkg/logger"
	"github.com/d60-Lab/shipdesk/pkg/monitoring"
)

// API Gateway 代理入口，每次调用处理一个请求，不启动后台任务
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	if err := monitoring.InitSentry(cfg.Sentry); err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		logger.Fatal("failed to init application", zap.Error(err))
	}
	adapter := ginadapter.New(a.Engine)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		defer monitoring.Flush()
		return adapter.ProxyWithContext(ctx, req)
	})
}
