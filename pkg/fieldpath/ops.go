package fieldpath

import (
	"github.com/ssargent/replaykit/pkg/bitreader"
)

// Op is one symbol of the field path grammar.
type Op uint8

// Operations in protocol order. The order fixes each symbol's value, which
// breaks weight ties when the Huffman tree is built.
const (
	OpPlusOne Op = iota
	OpPlusTwo
	OpPlusThree
	OpPlusFour
	OpPlusN
	OpPushOneLeftDeltaZeroRightZero
	OpPushOneLeftDeltaZeroRightNonZero
	OpPushOneLeftDeltaOneRightZero
	OpPushOneLeftDeltaOneRightNonZero
	OpPushOneLeftDeltaNRightZero
	OpPushOneLeftDeltaNRightNonZero
	OpPushOneLeftDeltaNRightNonZeroPack6Bits
	OpPushOneLeftDeltaNRightNonZeroPack8Bits
	OpPushTwoLeftDeltaZero
	OpPushTwoPack5LeftDeltaZero
	OpPushThreeLeftDeltaZero
	OpPushThreePack5LeftDeltaZero
	OpPushTwoLeftDeltaOne
	OpPushTwoPack5LeftDeltaOne
	OpPushThreeLeftDeltaOne
	OpPushThreePack5LeftDeltaOne
	OpPushTwoLeftDeltaN
	OpPushTwoPack5LeftDeltaN
	OpPushThreeLeftDeltaN
	OpPushThreePack5LeftDeltaN
	OpPushN
	OpPushNAndNonTopological
	OpPopOnePlusOne
	OpPopOnePlusN
	OpPopAllButOnePlusOne
	OpPopAllButOnePlusN
	OpPopAllButOnePlusNPack3Bits
	OpPopAllButOnePlusNPack6Bits
	OpPopNPlusOne
	OpPopNPlusN
	OpPopNAndNonTopographical
	OpNonTopoComplex
	OpNonTopoPenultimatePlusOne
	OpNonTopoComplexPack4Bits
	OpFinish

	numOps = int(OpFinish) + 1
)

type opFunc func(fp *FieldPath, r *bitreader.Reader) error

type opDef struct {
	name   string
	weight int
	apply  opFunc
}

// opTable is the versioned operation table for the "source2" protocol. The
// weights are the engine's own and must match it bit for bit.
var opTable = [numOps]opDef{
	{"PlusOne", 36271, plusConst(1)},
	{"PlusTwo", 10334, plusConst(2)},
	{"PlusThree", 1375, plusConst(3)},
	{"PlusFour", 646, plusConst(4)},
	{"PlusN", 4128, plusN},
	{"PushOneLeftDeltaZeroRightZero", 35, pushOneLeftDeltaZeroRightZero},
	{"PushOneLeftDeltaZeroRightNonZero", 3, pushOneLeftDeltaZeroRightNonZero},
	{"PushOneLeftDeltaOneRightZero", 521, pushOneLeftDeltaOneRightZero},
	{"PushOneLeftDeltaOneRightNonZero", 2942, pushOneLeftDeltaOneRightNonZero},
	{"PushOneLeftDeltaNRightZero", 560, pushOneLeftDeltaNRightZero},
	{"PushOneLeftDeltaNRightNonZero", 471, pushOneLeftDeltaNRightNonZero},
	{"PushOneLeftDeltaNRightNonZeroPack6Bits", 10530, pushOneLeftDeltaNRightNonZeroPack(3)},
	{"PushOneLeftDeltaNRightNonZeroPack8Bits", 251, pushOneLeftDeltaNRightNonZeroPack(4)},
	{"PushTwoLeftDeltaZero", 0, pushMany(2, leftZero, pushVar)},
	{"PushTwoPack5LeftDeltaZero", 0, pushMany(2, leftZero, pushPack5)},
	{"PushThreeLeftDeltaZero", 0, pushMany(3, leftZero, pushVar)},
	{"PushThreePack5LeftDeltaZero", 0, pushMany(3, leftZero, pushPack5)},
	{"PushTwoLeftDeltaOne", 0, pushMany(2, leftOne, pushVar)},
	{"PushTwoPack5LeftDeltaOne", 0, pushMany(2, leftOne, pushPack5)},
	{"PushThreeLeftDeltaOne", 0, pushMany(3, leftOne, pushVar)},
	{"PushThreePack5LeftDeltaOne", 0, pushMany(3, leftOne, pushPack5)},
	{"PushTwoLeftDeltaN", 0, pushMany(2, leftN, pushVar)},
	{"PushTwoPack5LeftDeltaN", 0, pushMany(2, leftN, pushPack5)},
	{"PushThreeLeftDeltaN", 0, pushMany(3, leftN, pushVar)},
	{"PushThreePack5LeftDeltaN", 0, pushMany(3, leftN, pushPack5)},
	{"PushN", 0, pushN},
	{"PushNAndNonTopological", 310, pushNAndNonTopological},
	{"PopOnePlusOne", 2, popOnePlusOne},
	{"PopOnePlusN", 0, popOnePlusN},
	{"PopAllButOnePlusOne", 1837, popAllButOnePlusOne},
	{"PopAllButOnePlusN", 149, popAllButOnePlusN},
	{"PopAllButOnePlusNPack3Bits", 300, popAllButOnePlusNPack(3)},
	{"PopAllButOnePlusNPack6Bits", 634, popAllButOnePlusNPack(6)},
	{"PopNPlusOne", 0, popNPlusOne},
	{"PopNPlusN", 0, popNPlusN},
	{"PopNAndNonTopographical", 1, popNAndNonTopographical},
	{"NonTopoComplex", 76, nonTopoComplex},
	{"NonTopoPenultimatePlusOne", 271, nonTopoPenultimatePlusOne},
	{"NonTopoComplexPack4Bits", 99, nonTopoComplexPack4Bits},
	{"FieldPathEncodeFinish", 25474, nil},
}

func (op Op) String() string {
	if int(op) < numOps {
		return opTable[op].name
	}
	return "Op(invalid)"
}

func plusConst(n int32) opFunc {
	return func(fp *FieldPath, _ *bitreader.Reader) error {
		fp.incLast(n)
		return nil
	}
}

func plusN(fp *FieldPath, r *bitreader.Reader) error {
	v, err := r.ReadUBitVarFieldPath()
	if err != nil {
		return err
	}
	fp.incLast(int32(v) + 5)
	return nil
}

func pushOneLeftDeltaZeroRightZero(fp *FieldPath, _ *bitreader.Reader) error {
	return fp.push(0)
}

func pushOneLeftDeltaZeroRightNonZero(fp *FieldPath, r *bitreader.Reader) error {
	v, err := r.ReadUBitVarFieldPath()
	if err != nil {
		return err
	}
	return fp.push(int32(v))
}

func pushOneLeftDeltaOneRightZero(fp *FieldPath, _ *bitreader.Reader) error {
	fp.incLast(1)
	return fp.push(0)
}

func pushOneLeftDeltaOneRightNonZero(fp *FieldPath, r *bitreader.Reader) error {
	v, err := r.ReadUBitVarFieldPath()
	if err != nil {
		return err
	}
	fp.incLast(1)
	return fp.push(int32(v))
}

func pushOneLeftDeltaNRightZero(fp *FieldPath, r *bitreader.Reader) error {
	v, err := r.ReadUBitVarFieldPath()
	if err != nil {
		return err
	}
	fp.incLast(int32(v))
	return fp.push(0)
}

func pushOneLeftDeltaNRightNonZero(fp *FieldPath, r *bitreader.Reader) error {
	left, err := r.ReadUBitVarFieldPath()
	if err != nil {
		return err
	}
	right, err := r.ReadUBitVarFieldPath()
	if err != nil {
		return err
	}
	fp.incLast(int32(left) + 2)
	return fp.push(int32(right) + 1)
}

func pushOneLeftDeltaNRightNonZeroPack(width int) opFunc {
	return func(fp *FieldPath, r *bitreader.Reader) error {
		left, err := r.ReadBits(width)
		if err != nil {
			return err
		}
		right, err := r.ReadBits(width)
		if err != nil {
			return err
		}
		fp.incLast(int32(left) + 2)
		return fp.push(int32(right) + 1)
	}
}

// leftFunc adjusts the current level before a multi-level push.
type leftFunc func(fp *FieldPath, r *bitreader.Reader) error

func leftZero(*FieldPath, *bitreader.Reader) error { return nil }

func leftOne(fp *FieldPath, _ *bitreader.Reader) error {
	fp.incLast(1)
	return nil
}

func leftN(fp *FieldPath, r *bitreader.Reader) error {
	v, err := r.ReadUBitVar()
	if err != nil {
		return err
	}
	fp.incLast(int32(v) + 2)
	return nil
}

// pushFunc reads the index for one pushed level.
type pushFunc func(r *bitreader.Reader) (int32, error)

func pushVar(r *bitreader.Reader) (int32, error) {
	v, err := r.ReadUBitVarFieldPath()
	return int32(v), err
}

func pushPack5(r *bitreader.Reader) (int32, error) {
	v, err := r.ReadBits(5)
	return int32(v), err
}

func pushMany(n int, left leftFunc, next pushFunc) opFunc {
	return func(fp *FieldPath, r *bitreader.Reader) error {
		if err := left(fp, r); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			v, err := next(r)
			if err != nil {
				return err
			}
			if err := fp.push(v); err != nil {
				return err
			}
		}
		return nil
	}
}

func pushN(fp *FieldPath, r *bitreader.Reader) error {
	n, err := r.ReadUBitVar()
	if err != nil {
		return err
	}
	delta, err := r.ReadUBitVar()
	if err != nil {
		return err
	}
	fp.incLast(int32(delta))
	for i := uint32(0); i < n; i++ {
		v, err := r.ReadUBitVarFieldPath()
		if err != nil {
			return err
		}
		if err := fp.push(int32(v)); err != nil {
			return err
		}
	}
	return nil
}

func pushNAndNonTopological(fp *FieldPath, r *bitreader.Reader) error {
	for i := 0; i <= int(fp.last); i++ {
		set, err := r.ReadBool()
		if err != nil {
			return err
		}
		if set {
			v, err := r.ReadVarint32()
			if err != nil {
				return err
			}
			fp.inc(i, v+1)
		}
	}
	n, err := r.ReadUBitVar()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		v, err := r.ReadUBitVarFieldPath()
		if err != nil {
			return err
		}
		if err := fp.push(int32(v)); err != nil {
			return err
		}
	}
	return nil
}

func popOnePlusOne(fp *FieldPath, _ *bitreader.Reader) error {
	if err := fp.pop(1); err != nil {
		return err
	}
	fp.incLast(1)
	return nil
}

func popOnePlusN(fp *FieldPath, r *bitreader.Reader) error {
	v, err := r.ReadUBitVarFieldPath()
	if err != nil {
		return err
	}
	if err := fp.pop(1); err != nil {
		return err
	}
	fp.incLast(int32(v) + 1)
	return nil
}

func popAllButOnePlusOne(fp *FieldPath, _ *bitreader.Reader) error {
	if err := fp.pop(int(fp.last)); err != nil {
		return err
	}
	fp.inc(0, 1)
	return nil
}

func popAllButOnePlusN(fp *FieldPath, r *bitreader.Reader) error {
	v, err := r.ReadUBitVarFieldPath()
	if err != nil {
		return err
	}
	if err := fp.pop(int(fp.last)); err != nil {
		return err
	}
	fp.inc(0, int32(v)+1)
	return nil
}

func popAllButOnePlusNPack(width int) opFunc {
	return func(fp *FieldPath, r *bitreader.Reader) error {
		v, err := r.ReadBits(width)
		if err != nil {
			return err
		}
		if err := fp.pop(int(fp.last)); err != nil {
			return err
		}
		fp.inc(0, int32(v)+1)
		return nil
	}
}

func popNPlusOne(fp *FieldPath, r *bitreader.Reader) error {
	n, err := r.ReadUBitVarFieldPath()
	if err != nil {
		return err
	}
	if err := fp.pop(int(n)); err != nil {
		return err
	}
	fp.incLast(1)
	return nil
}

func popNPlusN(fp *FieldPath, r *bitreader.Reader) error {
	n, err := r.ReadUBitVarFieldPath()
	if err != nil {
		return err
	}
	if err := fp.pop(int(n)); err != nil {
		return err
	}
	v, err := r.ReadVarint32()
	if err != nil {
		return err
	}
	fp.incLast(v)
	return nil
}

func popNAndNonTopographical(fp *FieldPath, r *bitreader.Reader) error {
	n, err := r.ReadUBitVarFieldPath()
	if err != nil {
		return err
	}
	if err := fp.pop(int(n)); err != nil {
		return err
	}
	return nonTopoComplex(fp, r)
}

func nonTopoComplex(fp *FieldPath, r *bitreader.Reader) error {
	for i := 0; i <= int(fp.last); i++ {
		set, err := r.ReadBool()
		if err != nil {
			return err
		}
		if set {
			v, err := r.ReadVarint32()
			if err != nil {
				return err
			}
			fp.inc(i, v)
		}
	}
	return nil
}

func nonTopoPenultimatePlusOne(fp *FieldPath, _ *bitreader.Reader) error {
	if fp.last < 1 {
		return ErrMalformedSymbol
	}
	fp.inc(int(fp.last)-1, 1)
	return nil
}

func nonTopoComplexPack4Bits(fp *FieldPath, r *bitreader.Reader) error {
	for i := 0; i <= int(fp.last); i++ {
		set, err := r.ReadBool()
		if err != nil {
			return err
		}
		if set {
			v, err := r.ReadBits(4)
			if err != nil {
				return err
			}
			fp.inc(i, int32(v)-7)
		}
	}
	return nil
}
