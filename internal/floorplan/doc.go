// Package floorplan holds the shared data model of the floor-plan
// reconstruction pipeline: points, slice boxes, wall segments, detection
// configuration and the FloorPlan result contract.
//
// Layer packages build on these types in order:
//
//	l1scene    scene graph traversal and point extraction
//	l2slice    slab filtering and projection onto the floor plane
//	l3cluster  DBSCAN density clustering and corner splitting
//	l4fit      PCA line fitting and RANSAC wall detection
//	l5topology collinear merging and corner snapping
//	l6render   SVG rendering with dimension annotations
//
// Dependency rule: a layer may depend on lower layers, never on higher ones.
// The pipeline package is the composition root and is imported by none of them.
package floorplan
