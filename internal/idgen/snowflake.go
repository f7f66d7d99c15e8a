package idgen

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

/* ========================================================================
 * Snowflake ID Generator
 * ========================================================================
 * 64-bit monotonic ids for every primary key. The node id comes from
 * SNOWFLAKE_NODE_ID; multi-instance deployments must set distinct ids.
 * ======================================================================== */

const (
	MaxNodeID = 1023
	EnvNodeID = "SNOWFLAKE_NODE_ID"
)

var (
	globalNode *snowflake.Node
	once       sync.Once
)

func initNode() error {
	nodeID, err := envNodeID()
	if err != nil {
		return err
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}

	globalNode = node
	return nil
}

// Generate returns a new snowflake id.
func Generate() int64 {
	once.Do(func() {
		if err := initNode(); err != nil {
			panic(err.Error())
		}
	})

	return globalNode.Generate().Int64()
}

// Parse returns the embedded timestamp (ms) and node id.
func Parse(id int64) (timestamp int64, nodeID int64) {
	sid := snowflake.ID(id)
	return sid.Time(), sid.Node()
}

func envNodeID() (int64, error) {
	val := os.Getenv(EnvNodeID)
	if val == "" {
		return 0, nil
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: invalid integer", EnvNodeID, val)
	}
	if id < 0 || id > MaxNodeID {
		return 0, fmt.Errorf("%s=%d: node id must be between 0 and %d", EnvNodeID, id, MaxNodeID)
	}
	return id, nil
}
