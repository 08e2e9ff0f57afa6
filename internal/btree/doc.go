// Package btree implements HDF5 v1 B-tree traversal for group indexing.
//
// HDF5 files with v0/v1 superblocks index group members with a B-tree +
// local heap combination. The B-tree (signature "TREE") points to Symbol
// Table Nodes (signature "SNOD") which contain the actual group entries,
// with entry names stored in the associated [heap.LocalHeap].
//
//   - [ReadGroupEntries] traverses a v1 B-tree to find all group members
//   - [GroupEntry] represents a group member (name, address, link type)
package btree
