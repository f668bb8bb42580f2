package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mlmpay/internal/config"

	"github.com/go-resty/resty/v2"
)

// ============================================================================
// 链上代付网关客户端
// ============================================================================
//
// 自动提现账户走这里：提现审核通过前先向网关发起链上转账，
// 网关异步广播交易并回传 txHash。所有请求带 x-api-key 鉴权头
//
// ============================================================================

var ErrGatewayRejected = errors.New("代付网关拒绝了请求")

// WithdrawRequest 发起链上代付的参数
type WithdrawRequest struct {
	UUID   string  `json:"uuid"`   // 业务侧幂等键，网关按它去重
	Chain  string  `json:"chain"`  // 链标识，如 BEP20
	To     string  `json:"to"`     // 收款地址
	Token  string  `json:"token"`  // 代币合约/符号
	Amount float64 `json:"amount"` // 到账金额（已扣手续费）
	Memo   string  `json:"memo"`
}

// WithdrawResponse 网关响应
type WithdrawResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash"`
	Message string `json:"message"`
}

// Client 代付网关客户端
type Client struct {
	http *resty.Client
}

func NewClient(cfg *config.GatewayConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", cfg.APIKey).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &Client{http: http}
}

// InitiateWithdrawal 发起链上代付
//
// 【关键点】uuid 是幂等键：超时重试打到网关的重复请求不会二次
// 放款。调用方必须在第一次请求前就把 uuid 落库
func (c *Client) InitiateWithdrawal(ctx context.Context, req *WithdrawRequest) (*WithdrawResponse, error) {
	var result WithdrawResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/api/withdraw")
	if err != nil {
		return nil, fmt.Errorf("请求代付网关失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("代付网关返回异常状态: %d, body=%s", resp.StatusCode(), resp.String())
	}
	if !result.Success {
		return &result, fmt.Errorf("%w: %s", ErrGatewayRejected, result.Message)
	}
	return &result, nil
}
