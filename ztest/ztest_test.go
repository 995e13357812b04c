package ztest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZTest(t *testing.T) { Run(t, "ztests") }

func TestSharedCollisionCache(t *testing.T) {
	before := collisions.Keys()
	for _, alias := range []string{"n1", "n2"} {
		z := &ZTest{
			Query:  `FROM organic "2015-01-01 03:00:00" "2015-01-01 05:00:00" SELECT count() AS ` + alias,
			Output: "\t2\n",
		}
		require.NoError(t, z.RunInternal(t.Context()))
	}
	assert.Equal(t, before+1, collisions.Keys())
}
