package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// IDGenerator hands out snowflake ids from a single node so ids issued by one
// process are strictly increasing.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator for the given node id (0..1023).
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &IDGenerator{node: node}, nil
}

// Next returns the next id.
func (g *IDGenerator) Next() int64 {
	return g.node.Generate().Int64()
}

// NodeEnv holds the snowflake node id. Processes sharing a database need
// distinct values or their ids can collide.
const NodeEnv = "SNOWFLAKE_NODE"

// NodeFromEnv returns the node id from NodeEnv. ok is false when the variable
// is unset or not a valid node id, in which case node 1 is returned.
func NodeFromEnv() (node int64, ok bool) {
	v := os.Getenv(NodeEnv)
	if v == "" {
		return 1, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 || n > 1023 {
		return 1, false
	}
	return n, true
}

var (
	defaultGen     *IDGenerator
	defaultGenOnce sync.Once
)

// DefaultIDGenerator returns a process-wide generator for NodeFromEnv.
func DefaultIDGenerator() *IDGenerator {
	defaultGenOnce.Do(func() {
		nodeID, _ := NodeFromEnv()
		defaultGen, _ = NewIDGenerator(nodeID)
	})
	return defaultGen
}
