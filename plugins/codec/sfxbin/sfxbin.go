package sfxbin

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"math"

	"github.com/pkg/errors"

	"mtpcrib/pkg/contract"
)

// 磁盘格式（整数均为 uvarint，除非另注）：
//
//	magic "SFX1" | version(1 字节) | 词数 | { 长度 | 字节 }* | 条目数 | { offset | word }* | crc32(IEEE, 大端 4 字节)
//
// crc 覆盖 magic 起至条目末尾的全部字节。
var Magic = []byte("SFX1")

// Version 为当前格式版本。
const Version byte = 1

// Codec 实现 contract.IndexCodec。
type Codec struct{}

// New 创建编解码器（无可选项）。
func New() *Codec { return &Codec{} }

// Encode 写出完整 blob。只检查条目下标范围；条目是否落在词内由索引重建时校验。
func (c *Codec) Encode(w io.Writer, words []string, order []contract.SuffixEntry) error {
	for _, e := range order {
		if e.Offset < 0 || e.Word < 0 || int(e.Word) >= len(words) {
			return errors.Wrapf(contract.ErrInvalidInput, "sfxbin: bad entry %+v", e)
		}
	}
	h := crc32.NewIEEE()
	bw := bufio.NewWriter(io.MultiWriter(w, h))
	var tmp [binary.MaxVarintLen64]byte
	putU := func(v uint64) {
		n := binary.PutUvarint(tmp[:], v)
		_, _ = bw.Write(tmp[:n])
	}

	_, _ = bw.Write(Magic)
	_ = bw.WriteByte(Version)
	putU(uint64(len(words)))
	for _, s := range words {
		putU(uint64(len(s)))
		_, _ = bw.WriteString(s)
	}
	putU(uint64(len(order)))
	for _, e := range order {
		putU(uint64(e.Offset))
		putU(uint64(e.Word))
	}
	// bufio.Writer 记录首个写错误，Flush 统一返回
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "sfxbin: write")
	}
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], h.Sum32())
	if _, err := w.Write(sum[:]); err != nil {
		return errors.Wrap(err, "sfxbin: write crc")
	}
	return nil
}

// Decode 读取并校验 blob；任何结构错误都包装 ErrCorruptBlob。
func (c *Codec) Decode(r io.Reader) ([]string, []contract.SuffixEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sfxbin: read")
	}
	if len(data) < len(Magic)+1+4 {
		return nil, nil, errors.Wrap(contract.ErrCorruptBlob, "sfxbin: too short")
	}
	body, tail := data[:len(data)-4], data[len(data)-4:]
	if string(body[:len(Magic)]) != string(Magic) {
		return nil, nil, errors.Wrap(contract.ErrCorruptBlob, "sfxbin: bad magic")
	}
	if v := body[len(Magic)]; v != Version {
		return nil, nil, errors.Wrapf(contract.ErrCorruptBlob, "sfxbin: unsupported version %d", v)
	}
	if want, got := binary.BigEndian.Uint32(tail), crc32.ChecksumIEEE(body); want != got {
		return nil, nil, errors.Wrapf(contract.ErrCorruptBlob, "sfxbin: crc %08x != %08x", got, want)
	}

	d := decoder{p: body[len(Magic)+1:]}
	nw := d.count(1)
	words := make([]string, 0, nw)
	for i := 0; i < nw && d.err == nil; i++ {
		l := d.count(1)
		words = append(words, string(d.bytes(l)))
	}
	// 每个条目至少 2 字节
	ne := d.count(2)
	order := make([]contract.SuffixEntry, 0, ne)
	for i := 0; i < ne && d.err == nil; i++ {
		off := d.i32()
		wi := d.i32()
		if d.err == nil && int(wi) >= nw {
			d.err = errors.Errorf("entry %d: word %d >= %d", i, wi, nw)
		}
		order = append(order, contract.SuffixEntry{Offset: off, Word: wi})
	}
	if d.err == nil && len(d.p) != 0 {
		d.err = errors.Errorf("%d trailing bytes", len(d.p))
	}
	if d.err != nil {
		return nil, nil, errors.Wrapf(contract.ErrCorruptBlob, "sfxbin: %v", d.err)
	}
	return words, order, nil
}

// decoder 顺序读取 uvarint；首错后全部读取变为 no-op。
type decoder struct {
	p   []byte
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.p)
	if n <= 0 {
		d.err = errors.New("bad uvarint")
		return 0
	}
	d.p = d.p[n:]
	return v
}

// count 读取一个长度/数量，并确认剩余字节至少能容纳 v*minBytes。
func (d *decoder) count(minBytes int) int {
	v := d.uvarint()
	if d.err == nil && v > uint64(len(d.p)/minBytes) {
		d.err = errors.Errorf("count %d exceeds remaining %d bytes", v, len(d.p))
		return 0
	}
	return int(v)
}

func (d *decoder) i32() int32 {
	v := d.uvarint()
	if d.err == nil && v > math.MaxInt32 {
		d.err = errors.Errorf("value %d overflows int32", v)
		return 0
	}
	return int32(v)
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	b := d.p[:n]
	d.p = d.p[n:]
	return b
}
