// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"
	"log/slog"
	"os"
)

// Init initializes all services that implement Initializer, in order.
// If one fails, services initialized before it are shut down again in
// reverse order and the failure is returned.
func Init(logger *slog.Logger, services []Service) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	var initErr error
	initialized := make([]Service, 0, len(services))

	for _, svc := range services {
		ini, ok := svc.(Initializer)
		if !ok {
			logger.Debug("skipping service initialization", "service", svc.Name(),
				"reason", "service does not implement Initializer")
			continue
		}

		logger.Info("Initializing service", "service", svc.Name())
		if err := ini.Init(); err != nil {
			initErr = fmt.Errorf("failed to initialize service %s: %w", svc.Name(), err)
			break
		}
		initialized = append(initialized, svc)
	}

	if initErr == nil {
		return nil
	}

	logger.Info("Shutting down initialized services")
	for i := len(initialized) - 1; i >= 0; i-- {
		svc := initialized[i]
		sd, ok := svc.(Shutdowner)
		if !ok {
			logger.Debug("skipping service shutdown", "service", svc.Name(),
				"reason", "service does not implement Shutdowner")
			continue
		}
		if err := sd.Shutdown(); err != nil {
			logger.Error("failed to shutdown service", "service", svc.Name(), "error", err)
		}
	}
	return initErr
}
