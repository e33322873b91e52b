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

package main

import (
	"os"
	"path/filepath"

	"chargerd/internal/charger"
	"chargerd/internal/config"
	"chargerd/internal/datalogger"
	"chargerd/internal/history"
	"chargerd/internal/powerboard"
	"chargerd/pkg/appctx"
	"chargerd/pkg/eventbus"
	"chargerd/pkg/logger"
	"chargerd/pkg/modbus"
	"chargerd/pkg/rootserv"
	"chargerd/pkg/service"
	"chargerd/pkg/sysmon"
)

func main() {

	rootdir := os.Getenv("PROJECT_ROOT")
	if rootdir == "" {
		rootdir = "."
	}

	logger.Init(filepath.Join(rootdir, "var/logs/chargerd.log"))

	appConf := config.LoadFile(filepath.Join(rootdir, "var/config/chargerd.json"))

	// use conf to pass eventbus to whoever needs it
	appConf.EventBus = eventbus.New()
	appConf.RootDir = rootdir

	ctx, ctxCancel := appctx.New()

	var board powerboard.Board
	switch appConf.Powerboard.Backend {
	case "modbus":
		modbusConf := modbus.LoadConfig(filepath.Join(rootdir, appConf.Powerboard.ModbusConfigPath))
		board = powerboard.NewModbusBoard(ctx, modbusConf)
	default:
		board = powerboard.NewSimBoard(appConf.Charger.CellCount, appConf.Charger.CapacityLimitMah)
	}

	// init services
	server := rootserv.New(appConf.Web.ListenAddr)
	sysMonitorService := sysmon.New()
	chargerService := charger.New(appConf, board)
	historyService := history.New(appConf)
	dataLoggerService := datalogger.New(chargerService, appConf)

	// attach web handler enabled services
	server.Attach("/logger", "Logger", logger.WebService())
	server.Attach("/monitor", "System Monitor", sysMonitorService)
	server.Attach("/charger", "Charge Controller", chargerService)
	server.Attach("/history", "Charge History", historyService)

	// start runnable services
	exitCh := service.Start(ctx, ctxCancel, []service.Runnable{
		chargerService,
		historyService,
		dataLoggerService,
		server,
	})

	// waits for all services to stop
	exitCode := <-exitCh
	appConf.EventBus.PrintStats()
	os.Exit(exitCode)
}
