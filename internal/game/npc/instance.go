package npc

import (
	"time"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
	"github.com/cory-johannsen/npcbrain/internal/game/world"
)

// Instance is a live NPC: its world body and the brain driving it.
type Instance struct {
	// ID uniquely identifies this runtime instance and its world entity.
	ID ai.Handle
	// TemplateID is the source template's ID.
	TemplateID string
	// ProfileID is the brain profile the actions were built from.
	ProfileID string
	// Entity is the NPC's body in the world.
	Entity *world.Entity
	// Brain drives the NPC's decisions.
	Brain *ai.Brain
	// SpawnedAt is when the instance entered the world.
	SpawnedAt time.Time
}
