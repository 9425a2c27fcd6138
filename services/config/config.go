// Package config publishes the device's embedded configuration as retained
// messages, one per top-level key, on config/<key>.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"smartbin-go/bus"
	"smartbin-go/errcode"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// CtxDeviceKey is the context key carrying the device ID.
const CtxDeviceKey ctxKey = "device"

// WithDevice returns ctx carrying the device ID.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, CtxDeviceKey, device)
}

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

type ConfigService struct {
	Name string
	Log  io.Writer
}

func NewConfigService(log io.Writer) *ConfigService {
	if log == nil {
		log = io.Discard
	}
	return &ConfigService{Name: serviceName, Log: log}
}

// publishConfig reads the device config from embedded data and publishes it as retained messages.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return &errcode.E{C: errcode.InvalidParams, Op: "config.publish", Msg: "missing device ID in context"}
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: "config.publish", Msg: "no embedded config for device " + device}
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return errcode.Wrap(errcode.InvalidParams, "config.publish", err)
	}

	for k, v := range m {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	return nil
}

// Start publishes synchronously so that services started afterwards find
// their retained config on subscribe.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) error {
	if err := s.publishConfig(ctx, conn); err != nil {
		fmt.Fprintf(s.Log, "[config] %v\r\n", err)
		return err
	}
	return nil
}
