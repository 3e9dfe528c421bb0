package SchemaVC

import (
	"github.com/nickyhof/SchemaVC/core"
	"github.com/nickyhof/SchemaVC/ps"
	"github.com/nickyhof/SchemaVC/vc"
)

type Instance struct {
	Persistence *ps.Persistence
}

func Open(persistence *ps.Persistence) *Instance {
	return &Instance{
		Persistence: persistence,
	}
}

func (instance *Instance) Engine(identity core.Identity) *vc.Engine {
	return vc.NewEngine(instance.Persistence, identity)
}
