package state

import (
	"encoding/binary"
)

// Table prefixes. String key components are terminated by keySep; token ids
// are big-endian so that byte order matches numeric order.
const (
	prefixAsk            byte = 0x01
	prefixBid            byte = 0x02
	prefixParams         byte = 0x03
	prefixListedHook     byte = 0x04
	prefixSaleHook       byte = 0x05
	prefixPending        byte = 0x06
	prefixReplyTag       byte = 0x07
	prefixAskBySeller    byte = 0x08
	prefixBidByBidder    byte = 0x09
	prefixAskCount       byte = 0x0a
	prefixBalance        byte = 0x10
	prefixNFTOwner       byte = 0x20
	prefixNFTApproval    byte = 0x21
	prefixCollRoyalty    byte = 0x22
	prefixTokenRoyalty   byte = 0x23
	prefixNFTOperator    byte = 0x24
	keySep               byte = 0x00
	tokenIDWidth              = 4
)

type keyBuilder []byte

func newKey(prefix byte) keyBuilder {
	return keyBuilder{prefix}
}

func (k keyBuilder) str(s string) keyBuilder {
	k = append(k, s...)
	return append(k, keySep)
}

func (k keyBuilder) token(id uint32) keyBuilder {
	return binary.BigEndian.AppendUint32(k, id)
}

func (k keyBuilder) u64(v uint64) keyBuilder {
	return binary.BigEndian.AppendUint64(k, v)
}

// raw appends s without a terminator. Used for the last component of keys
// that are only ever read back whole.
func (k keyBuilder) raw(s string) keyBuilder {
	return append(k, s...)
}

func (k keyBuilder) bytes() []byte {
	return []byte(k)
}

// after returns the smallest key ordered strictly after k and every key
// having k as a strict prefix terminated by keySep.
func after(k []byte) []byte {
	out := make([]byte, len(k)+1)
	copy(out, k)
	return out
}

func askKey(collection string, tokenID uint32) []byte {
	return newKey(prefixAsk).str(collection).token(tokenID).bytes()
}

func askCollectionPrefix(collection string) []byte {
	return newKey(prefixAsk).str(collection).bytes()
}

func bidKey(collection string, tokenID uint32, bidder string) []byte {
	return newKey(prefixBid).str(collection).token(tokenID).raw(bidder).bytes()
}

func bidTokenPrefix(collection string, tokenID uint32) []byte {
	return newKey(prefixBid).str(collection).token(tokenID).bytes()
}

func sellerIndexKey(seller, collection string, tokenID uint32) []byte {
	return newKey(prefixAskBySeller).str(seller).str(collection).token(tokenID).bytes()
}

func sellerIndexPrefix(seller string) []byte {
	return newKey(prefixAskBySeller).str(seller).bytes()
}

func bidderIndexKey(bidder, collection string, tokenID uint32) []byte {
	return newKey(prefixBidByBidder).str(bidder).str(collection).token(tokenID).bytes()
}

func bidderIndexPrefix(bidder string) []byte {
	return newKey(prefixBidByBidder).str(bidder).bytes()
}

func askCountKey(collection string) []byte {
	return newKey(prefixAskCount).raw(collection).bytes()
}

func hookKey(prefix byte, addr string) []byte {
	return newKey(prefix).raw(addr).bytes()
}

func pendingKey(tag uint64) []byte {
	return newKey(prefixPending).u64(tag).bytes()
}

func balanceKey(addr, denom string) []byte {
	return newKey(prefixBalance).str(addr).raw(denom).bytes()
}

func nftOwnerKey(collection string, tokenID uint32) []byte {
	return newKey(prefixNFTOwner).str(collection).token(tokenID).bytes()
}

func nftApprovalKey(collection string, tokenID uint32) []byte {
	return newKey(prefixNFTApproval).str(collection).token(tokenID).bytes()
}

func nftOperatorKey(collection, owner, operator string) []byte {
	return newKey(prefixNFTOperator).str(collection).str(owner).raw(operator).bytes()
}

func collectionRoyaltyKey(collection string) []byte {
	return newKey(prefixCollRoyalty).raw(collection).bytes()
}

func tokenRoyaltyKey(collection string, tokenID uint32) []byte {
	return newKey(prefixTokenRoyalty).str(collection).token(tokenID).bytes()
}

// splitIndexKey decodes the (collection, token) suffix of a seller or bidder
// index key once the owner component has been stripped.
func splitIndexKey(suffix []byte) (string, uint32, bool) {
	if len(suffix) < tokenIDWidth+1 {
		return "", 0, false
	}
	sep := len(suffix) - tokenIDWidth - 1
	if suffix[sep] != keySep {
		return "", 0, false
	}
	return string(suffix[:sep]), binary.BigEndian.Uint32(suffix[sep+1:]), true
}
