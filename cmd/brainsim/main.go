// Package main provides the brain simulator binary: it loads NPC templates,
// brain profiles and Lua scripts, populates a world with wandering players who
// skirmish with the NPCs, and runs every NPC brain until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcbrain/internal/config"
	"github.com/cory-johannsen/npcbrain/internal/game/ai"
	"github.com/cory-johannsen/npcbrain/internal/game/npc"
	"github.com/cory-johannsen/npcbrain/internal/game/world"
	"github.com/cory-johannsen/npcbrain/internal/gameserver"
	"github.com/cory-johannsen/npcbrain/internal/observability"
	"github.com/cory-johannsen/npcbrain/internal/scripting"
	"github.com/cory-johannsen/npcbrain/internal/server"
)

// playerSpeed is how far a wandering player moves per movement tick.
const playerSpeed = 40.0

// followSpeed is how far a following NPC moves per movement tick.
const followSpeed = 60.0

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/brainsim.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "brainsim")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting brain simulator",
		zap.Duration("think_interval", cfg.Brain.ThinkInterval),
		zap.Int("players", cfg.Sim.Players),
	)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	brainMetrics := observability.NewBrainMetrics(reg)

	// Brain profiles
	profiles := ai.NewRegistry()
	if cfg.Content.ProfilesDir != "" {
		loaded, err := ai.LoadProfiles(cfg.Content.ProfilesDir)
		if err != nil {
			logger.Fatal("loading brain profiles", zap.Error(err))
		}
		for _, p := range loaded {
			if err := profiles.Replace(p); err != nil {
				logger.Fatal("registering brain profile", zap.String("profile", p.ID), zap.Error(err))
			}
		}
		logger.Info("loaded brain profiles", zap.Int("count", len(loaded)))
		if cfg.Content.Watch {
			if err := ai.WatchProfiles(ctx, cfg.Content.ProfilesDir, profiles, logger); err != nil {
				logger.Fatal("watching brain profiles", zap.Error(err))
			}
		}
	}

	// Factions
	var factions map[string]*world.Faction
	if cfg.Content.FactionsFile != "" {
		factions, err = world.LoadFactionsFromFile(cfg.Content.FactionsFile)
		if err != nil {
			logger.Fatal("loading factions", zap.Error(err))
		}
		logger.Info("loaded factions", zap.Int("count", len(factions)))
	}

	worldMgr := world.NewManager()
	brainTicks := gameserver.NewTickManager(cfg.Brain.ThinkInterval, logger)
	moveTicks := gameserver.NewTickManager(cfg.Sim.MoveInterval, logger)

	// Scripting
	scriptMgr := scripting.NewManager(logger)
	defer scriptMgr.Close()

	spawner := npc.NewSpawner(npc.Deps{
		World:    worldMgr,
		Profiles: profiles,
		Ticks:    brainTicks,
		Logger:   logger,
		Limits:   cfg.Brain.Limits(),
		Factions: factions,
		Scripts:  scriptMgr,
		ZoneID:   cfg.Sim.ZoneID,
		Metrics:  brainMetrics,
	})
	bindScripting(scriptMgr, worldMgr, spawner)

	if cfg.Content.ScriptsDir != "" {
		zones, err := scriptMgr.LoadZones(cfg.Content.ScriptsDir, cfg.Content.ScriptInstructionLimit)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn("script directory missing; scripted actions disabled", zap.String("dir", cfg.Content.ScriptsDir))
		case err != nil:
			logger.Fatal("loading lua scripts", zap.Error(err))
		default:
			logger.Info("loaded lua zones", zap.Strings("zones", zones))
		}
	}

	// World population
	seed := uint64(cfg.Sim.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1))
	if err := populatePlayers(worldMgr, cfg.Sim, rng); err != nil {
		logger.Fatal("creating players", zap.Error(err))
	}

	templates, err := npc.LoadTemplates(cfg.Content.NPCsDir)
	if err != nil {
		logger.Fatal("loading npc templates", zap.Error(err))
	}
	instances, err := spawner.SpawnAll(ctx, templates, rng)
	if err != nil {
		logger.Fatal("spawning npcs", zap.Error(err))
	}
	logger.Info("npcs spawned",
		zap.Int("templates", len(templates)),
		zap.Int("instances", len(instances)),
	)

	moveTicks.RegisterTick("wander", func() {
		worldMgr.Wander(rng, playerSpeed, cfg.Sim.WorldRadius)
	})
	moveTicks.RegisterTick("follow", func() {
		worldMgr.StepFollowers(followSpeed)
	})
	fights := newSkirmish(ctx, worldMgr, spawner, templates, rng, logger)
	moveTicks.RegisterTick("skirmish", fights.round)

	// Services
	lifecycle := server.NewLifecycle(logger)
	if cfg.Metrics.Enabled {
		lifecycle.Add("metrics", observability.NewMetricsServer(cfg.Metrics.Addr, reg, logger))
	}
	lifecycle.Add("movement", moveTicks)
	lifecycle.Add("brains", &server.FuncService{
		StartFn: brainTicks.Start,
		StopFn: func() {
			brainTicks.Stop()
			spawner.DespawnAll()
		},
	})

	logger.Info("brain simulator ready", zap.Duration("startup", time.Since(start)))
	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("simulator stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

// populatePlayers adds sim.Players players at random positions, cycling
// through the three realms and grouping them in pairs.
func populatePlayers(w *world.Manager, sim config.SimConfig, rng *rand.Rand) error {
	realms := []ai.Realm{ai.RealmAlbion, ai.RealmMidgard, ai.RealmHibernia}
	var group *world.Group
	for i := range sim.Players {
		id := ai.Handle(fmt.Sprintf("player-%d", i+1))
		p, err := world.NewEntity(id, fmt.Sprintf("Player %d", i+1), ai.KindPlayer, sim.PlayerLevel, world.RandomPoint(rng, sim.WorldRadius))
		if err != nil {
			return err
		}
		p.SetRealm(realms[i%len(realms)])
		if err := w.Add(p); err != nil {
			return err
		}
		if i%2 == 0 {
			group = world.NewGroup(p)
		} else {
			group.Add(p)
		}
	}
	return nil
}

// bindScripting connects the engine.* Lua modules to the live world and brains.
func bindScripting(m *scripting.Manager, w *world.Manager, s *npc.Spawner) {
	m.Lookup = func(id string) *scripting.EntityInfo {
		e, ok := w.Entity(ai.Handle(id))
		if !ok {
			return nil
		}
		pos := e.Position()
		return &scripting.EntityInfo{
			ID:    id,
			Name:  e.Name(),
			Kind:  e.Kind().String(),
			Level: e.Level(),
			X:     pos.X,
			Y:     pos.Y,
			Z:     pos.Z,
			Alive: e.IsAlive(),
		}
	}
	m.PlayersNear = func(id string, radius float64) []string {
		e, ok := w.Entity(ai.Handle(id))
		if !ok {
			return nil
		}
		players := w.PlayersInRadius(e.Position(), radius)
		out := make([]string, len(players))
		for i, p := range players {
			out[i] = string(p.ID())
		}
		return out
	}
	m.AggroOf = func(npcID, targetID string) (int64, bool) {
		inst, ok := s.Get(ai.Handle(npcID))
		if !ok {
			return 0, false
		}
		return inst.Brain.Aggro().Get(ai.Handle(targetID))
	}
	m.AddAggro = func(npcID, targetID string, amount int64) error {
		inst, ok := s.Get(ai.Handle(npcID))
		if !ok {
			return fmt.Errorf("unknown npc %q", npcID)
		}
		target, ok := w.Lookup(ai.Handle(targetID))
		if !ok {
			return fmt.Errorf("unknown target %q", targetID)
		}
		inst.Brain.Aggro().Add(target, amount)
		return nil
	}
	m.StateOf = func(npcID string) string {
		inst, ok := s.Get(ai.Handle(npcID))
		if !ok {
			return ""
		}
		return inst.Brain.State().String()
	}
}
