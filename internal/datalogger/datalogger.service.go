// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package datalogger ships charge telemetry to an EmonCMS-compatible
// endpoint for long-term charting.
package datalogger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chargerd/internal/config"
	"chargerd/pkg/logger"
	"chargerd/pkg/service"
)

// DataSource is anything exposing a flat metric map (the charger
// control service does).
type DataSource interface {
	GetData() map[string]float64
}

type loggerService struct {
	addr     string
	apiKey   string
	interval time.Duration
	log      *logger.Logger
	source   DataSource
}

func New(source DataSource, appConfig *config.Config) service.Runnable {
	return &loggerService{
		addr:     appConfig.DataLogger.EmonCMSAddr,
		apiKey:   appConfig.DataLogger.EmonCMSApiKey,
		interval: time.Duration(appConfig.DataLogger.IntervalSeconds) * time.Second,
		log:      logger.New("DataLogger"),
		source:   source,
	}
}

func (c *loggerService) emoncmsInputPost(node string, data map[string]float64) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		c.log.Error("json.Marshal: %v", err)
		return err
	}

	request := fmt.Sprintf("%s/input/post?node=%s&apikey=%s&fulljson=%s",
		c.addr, node, c.apiKey, string(bytes))

	resp, err := http.Get(request)
	if err != nil {
		c.log.Error("http.Get: %v", err)
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *loggerService) tick() {
	data := c.source.GetData()
	if len(data) == 0 {
		return
	}
	if err := c.emoncmsInputPost("charger", data); err != nil {
		c.log.Error("emoncmsInputPost: %v", err)
	}
}

func (c *loggerService) Run(ctx context.Context) {
	c.log.Info("Running...")
	defer c.log.Info("Stopped.")

	if c.addr == "" {
		c.log.Info("no emoncms address configured; data logger disabled")
		<-ctx.Done()
		return
	}

	tick := time.NewTicker(c.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			c.tick()
		}
	}
}
