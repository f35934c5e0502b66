package l3cluster

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// Params contains parameters for the DBSCAN clustering algorithm.
type Params struct {
	Eps       float64 // neighbourhood radius in view units
	MinPoints int     // minimum neighbours (self included) for a core point
}

// Validate rejects parameters DBSCAN cannot run with.
func (p Params) Validate() error {
	if !(p.Eps > 0) || math.IsInf(p.Eps, 1) {
		return fmt.Errorf("%w: dbscan eps must be positive, got %v", floorplan.ErrInvalidConfig, p.Eps)
	}
	if p.MinPoints < 1 {
		return fmt.Errorf("%w: dbscan min points must be at least 1, got %d", floorplan.ErrInvalidConfig, p.MinPoints)
	}
	return nil
}

// Cluster is one density-connected group of points.
type Cluster struct {
	ID      int
	Indices []int // indices into the clustered point slice, ascending
	Points  []floorplan.Point2D
}

// Label values used during clustering.
const (
	labelUnvisited = 0
	labelNoise     = -1
)

// DBSCAN performs density-based clustering on 2D points. Noise points are
// left out of every cluster. Clusters are returned in discovery order.
// The context is checked before each cluster expansion.
func DBSCAN(ctx context.Context, points []floorplan.Point2D, params Params) ([]Cluster, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}

	n := len(points)
	labels := make([]int, n) // 0=unvisited, -1=noise, >0=clusterID
	clusterID := 0

	si := NewSpatialIndex(params.Eps)
	si.Build(points)

	for i := 0; i < n; i++ {
		if labels[i] != labelUnvisited {
			continue
		}

		neighbors := si.RegionQuery(i, params.Eps)
		if len(neighbors) < params.MinPoints {
			labels[i] = labelNoise
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clusterID++
		expandCluster(si, labels, i, neighbors, clusterID, params)
	}

	return buildClusters(points, labels, clusterID), nil
}

// expandCluster grows a cluster breadth-first from a core point.
func expandCluster(si *SpatialIndex, labels []int, seedIdx int, neighbors []int, clusterID int, params Params) {
	labels[seedIdx] = clusterID

	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]

		if labels[idx] == labelNoise {
			labels[idx] = clusterID // noise becomes border point
		}
		if labels[idx] != labelUnvisited {
			continue
		}

		labels[idx] = clusterID
		next := si.RegionQuery(idx, params.Eps)
		if len(next) >= params.MinPoints {
			neighbors = append(neighbors, next...)
		}
	}
}

func buildClusters(points []floorplan.Point2D, labels []int, maxClusterID int) []Cluster {
	clusters := make([]Cluster, maxClusterID)
	for cid := range clusters {
		clusters[cid].ID = cid + 1
	}
	for i, label := range labels {
		if label <= 0 {
			continue
		}
		c := &clusters[label-1]
		c.Indices = append(c.Indices, i)
		c.Points = append(c.Points, points[i])
	}
	return clusters
}
