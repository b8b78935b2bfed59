package component

// Script names the Lua function the script system calls for the entity
// each frame, as fn(entity, dt_seconds).
type Script struct {
	Function string
	Elapsed  float64
}

type ScriptConfig struct {
	Function string `yaml:"function"`
}
