// Package archive stores a finished run as a CAR file. Every turn is a
// dag-cbor block; the root block carries the seed, the final positions and
// links to the turns in order.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-car"
	carutil "github.com/ipld/go-car/util"
	"github.com/ipld/go-ipld-prime"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	"github.com/ipld/go-ipld-prime/linking"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/multiformats/go-multihash"

	"github.com/justinabrahms/piecewalk/internal/board"
	"github.com/justinabrahms/piecewalk/internal/game"
	"github.com/justinabrahms/piecewalk/internal/piece"
)

const (
	ContentType   = "application/vnd.ipld.car"
	formatVersion = 1
)

var (
	ErrNoRoot       = errors.New("archive has no root")
	ErrMissingBlock = errors.New("archive is missing a block")
	ErrCorruptBlock = errors.New("block does not match its cid")
)

var linkPrototype = cidlink.LinkPrototype{Prefix: cid.Prefix{
	Version:  1,
	Codec:    cid.DagCBOR,
	MhType:   multihash.SHA2_256,
	MhLength: 32,
}}

// Run is everything needed to inspect or replay a walk.
type Run struct {
	Seed      int64
	Positions map[piece.Kind]board.Position
	Turns     []game.Turn
}

// RunOf captures the current state of a game.
func RunOf(g *game.Game) Run {
	return Run{
		Seed:      g.Seed(),
		Positions: g.Positions(),
		Turns:     g.History(),
	}
}

type block struct {
	cid  cid.Cid
	data []byte
}

// Export writes run as a CAR v1 stream and returns the root cid.
func Export(w io.Writer, run Run) (cid.Cid, error) {
	var blocks []block

	lsys := cidlink.DefaultLinkSystem()
	lsys.StorageWriteOpener = func(linking.LinkContext) (io.Writer, linking.BlockWriteCommitter, error) {
		buf := new(bytes.Buffer)
		return buf, func(lnk ipld.Link) error {
			blocks = append(blocks, block{cid: lnk.(cidlink.Link).Cid, data: buf.Bytes()})
			return nil
		}, nil
	}

	turnLinks := make([]ipld.Link, 0, len(run.Turns))
	for _, t := range run.Turns {
		node, err := turnNode(t)
		if err != nil {
			return cid.Undef, fmt.Errorf("failed to build turn %d: %w", t.Number, err)
		}
		lnk, err := lsys.Store(linking.LinkContext{}, linkPrototype, node)
		if err != nil {
			return cid.Undef, fmt.Errorf("failed to store turn %d: %w", t.Number, err)
		}
		turnLinks = append(turnLinks, lnk)
	}

	root, err := rootNode(run, turnLinks)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to build root: %w", err)
	}
	rootLink, err := lsys.Store(linking.LinkContext{}, linkPrototype, root)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to store root: %w", err)
	}
	rootCid := rootLink.(cidlink.Link).Cid

	header := &car.CarHeader{Roots: []cid.Cid{rootCid}, Version: 1}
	if err := car.WriteHeader(header, w); err != nil {
		return cid.Undef, fmt.Errorf("failed to write CAR header: %w", err)
	}

	// Root first, then turns in play order.
	ordered := append([]block{blocks[len(blocks)-1]}, blocks[:len(blocks)-1]...)
	for _, b := range ordered {
		if err := carutil.LdWrite(w, b.cid.Bytes(), b.data); err != nil {
			return cid.Undef, fmt.Errorf("failed to write block %s: %w", b.cid, err)
		}
	}

	return rootCid, nil
}

// Import reads a CAR stream written by Export.
func Import(r io.Reader) (Run, error) {
	reader, err := car.NewCarReader(r)
	if err != nil {
		return Run{}, fmt.Errorf("failed to create CAR reader: %w", err)
	}
	if len(reader.Header.Roots) == 0 {
		return Run{}, ErrNoRoot
	}

	blocks := make(map[cid.Cid][]byte)
	for {
		blk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Run{}, fmt.Errorf("failed to read block: %w", err)
		}

		sum, err := blk.Cid().Prefix().Sum(blk.RawData())
		if err != nil {
			return Run{}, fmt.Errorf("failed to hash block %s: %w", blk.Cid(), err)
		}
		if !sum.Equals(blk.Cid()) {
			return Run{}, fmt.Errorf("%w: %s", ErrCorruptBlock, blk.Cid())
		}
		blocks[blk.Cid()] = blk.RawData()
	}

	load := func(c cid.Cid) (ipld.Node, error) {
		data, ok := blocks[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingBlock, c)
		}
		nb := basicnode.Prototype.Any.NewBuilder()
		if err := dagcbor.Decode(nb, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to decode CBOR: %w", err)
		}
		return nb.Build(), nil
	}

	root, err := load(reader.Header.Roots[0])
	if err != nil {
		return Run{}, err
	}

	return readRun(root, load)
}

func positionEntry(p board.Position) qp.Assemble {
	return qp.Map(2, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "x", qp.Int(int64(p.X)))
		qp.MapEntry(ma, "y", qp.Int(int64(p.Y)))
	})
}

func turnNode(t game.Turn) (ipld.Node, error) {
	return qp.BuildMap(basicnode.Prototype.Any, 4, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "number", qp.Int(int64(t.Number)))
		qp.MapEntry(ma, "kind", qp.String(t.Kind.String()))
		qp.MapEntry(ma, "from", positionEntry(t.From))
		qp.MapEntry(ma, "to", positionEntry(t.To))
	})
}

func rootNode(run Run, turns []ipld.Link) (ipld.Node, error) {
	return qp.BuildMap(basicnode.Prototype.Any, 4, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "version", qp.Int(formatVersion))
		qp.MapEntry(ma, "seed", qp.Int(run.Seed))
		qp.MapEntry(ma, "positions", qp.Map(int64(len(run.Positions)), func(pm datamodel.MapAssembler) {
			// Fixed order keeps the root cid stable for equal runs.
			for _, k := range piece.Kinds() {
				if pos, ok := run.Positions[k]; ok {
					qp.MapEntry(pm, k.String(), positionEntry(pos))
				}
			}
		}))
		qp.MapEntry(ma, "turns", qp.List(int64(len(turns)), func(la datamodel.ListAssembler) {
			for _, lnk := range turns {
				qp.ListEntry(la, qp.Link(lnk))
			}
		}))
	})
}

func readRun(root ipld.Node, load func(cid.Cid) (ipld.Node, error)) (Run, error) {
	version, err := intField(root, "version")
	if err != nil {
		return Run{}, err
	}
	if version != formatVersion {
		return Run{}, fmt.Errorf("unsupported archive version %d", version)
	}

	seed, err := intField(root, "seed")
	if err != nil {
		return Run{}, err
	}
	run := Run{Seed: seed, Positions: make(map[piece.Kind]board.Position)}

	positions, err := root.LookupByString("positions")
	if err != nil {
		return Run{}, fmt.Errorf("missing positions: %w", err)
	}
	iter := positions.MapIterator()
	for !iter.Done() {
		k, v, err := iter.Next()
		if err != nil {
			return Run{}, err
		}
		name, err := k.AsString()
		if err != nil {
			return Run{}, err
		}
		kind, err := piece.ParseKind(name)
		if err != nil {
			return Run{}, err
		}
		pos, err := readPosition(v)
		if err != nil {
			return Run{}, fmt.Errorf("position of %s: %w", kind, err)
		}
		run.Positions[kind] = pos
	}

	turns, err := root.LookupByString("turns")
	if err != nil {
		return Run{}, fmt.Errorf("missing turns: %w", err)
	}
	list := turns.ListIterator()
	for !list.Done() {
		_, v, err := list.Next()
		if err != nil {
			return Run{}, err
		}
		lnk, err := v.AsLink()
		if err != nil {
			return Run{}, err
		}
		node, err := load(lnk.(cidlink.Link).Cid)
		if err != nil {
			return Run{}, err
		}
		t, err := readTurn(node)
		if err != nil {
			return Run{}, err
		}
		run.Turns = append(run.Turns, t)
	}

	return run, nil
}

func readTurn(node ipld.Node) (game.Turn, error) {
	number, err := intField(node, "number")
	if err != nil {
		return game.Turn{}, err
	}

	kindNode, err := node.LookupByString("kind")
	if err != nil {
		return game.Turn{}, fmt.Errorf("turn %d: missing kind: %w", number, err)
	}
	name, err := kindNode.AsString()
	if err != nil {
		return game.Turn{}, err
	}
	kind, err := piece.ParseKind(name)
	if err != nil {
		return game.Turn{}, err
	}

	fromNode, err := node.LookupByString("from")
	if err != nil {
		return game.Turn{}, fmt.Errorf("turn %d: missing from: %w", number, err)
	}
	from, err := readPosition(fromNode)
	if err != nil {
		return game.Turn{}, err
	}

	toNode, err := node.LookupByString("to")
	if err != nil {
		return game.Turn{}, fmt.Errorf("turn %d: missing to: %w", number, err)
	}
	to, err := readPosition(toNode)
	if err != nil {
		return game.Turn{}, err
	}

	return game.Turn{Number: int(number), Kind: kind, From: from, To: to}, nil
}

func readPosition(node ipld.Node) (board.Position, error) {
	x, err := intField(node, "x")
	if err != nil {
		return board.Position{}, err
	}
	y, err := intField(node, "y")
	if err != nil {
		return board.Position{}, err
	}
	return board.NewPosition(int(x), int(y))
}

func intField(node ipld.Node, name string) (int64, error) {
	v, err := node.LookupByString(name)
	if err != nil {
		return 0, fmt.Errorf("missing %s: %w", name, err)
	}
	return v.AsInt()
}
