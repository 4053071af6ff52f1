// Package bagit turns a directory into a BagIt bag in place and validates
// existing bags.
//
// Make moves the directory's contents under data/, writes SHA-256 and SHA-512
// payload manifests, bagit.txt, bag-info.txt with the supplied tags, and tag
// manifests covering those files. Validate re-reads a bag and checks every
// manifest entry and the Payload-Oxum.
package bagit
