package api

// ContainerResources mirrors the teacher's resource-limit shape: CPU in
// nanocores and memory in bytes, passed through to the engine's
// HostConfig when starting the new container.
const (
	MilliCore = 1_000_000
	Core      = 1000 * MilliCore
)

type ContainerResources struct {
	// CPU is the maximum amount of CPU nanocores the container can use.
	CPU int64
	// Memory is the maximum amount of memory (in bytes) the container
	// can use. Zero means unlimited.
	Memory int64
}
