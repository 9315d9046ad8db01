package contracts

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ERC20ABI is the fragment of the ERC-20 ABI needed to observe token transfers
const ERC20ABI = `[
	{
		"anonymous": false,
		"inputs": [
			{
				"indexed": true,
				"internalType": "address",
				"name": "from",
				"type": "address"
			},
			{
				"indexed": true,
				"internalType": "address",
				"name": "to",
				"type": "address"
			},
			{
				"indexed": false,
				"internalType": "uint256",
				"name": "value",
				"type": "uint256"
			}
		],
		"name": "Transfer",
		"type": "event"
	}
]`

// TransferTopic is the event signature hash identifying ERC-20 Transfer logs
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// ERC20Transfer represents a decoded Transfer log
type ERC20Transfer struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Raw   types.Log // Blockchain specific contextual infos
}

var (
	erc20ABIOnce   sync.Once
	erc20ABIParsed abi.ABI
	erc20ABIErr    error
)

// erc20ABI parses the embedded ABI once and caches the result
func erc20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABIParsed, erc20ABIErr = abi.JSON(strings.NewReader(ERC20ABI))
	})
	return erc20ABIParsed, erc20ABIErr
}

// ParseTransfer decodes an ERC-20 Transfer log. The from and to
// addresses are indexed and live in the topics, the value is the only
// non-indexed field and lives in the data.
func ParseTransfer(log types.Log) (*ERC20Transfer, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("transfer log must carry 3 topics, got %d", len(log.Topics))
	}
	if log.Topics[0] != TransferTopic {
		return nil, fmt.Errorf("unexpected event signature: %s", log.Topics[0].Hex())
	}

	parsed, err := erc20ABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %v", err)
	}

	values, err := parsed.Unpack("Transfer", log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack transfer value: %v", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected number of decoded transfer values: %d", len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("transfer value has unexpected type %T", values[0])
	}

	return &ERC20Transfer{
		From:  common.BytesToAddress(log.Topics[1].Bytes()),
		To:    common.BytesToAddress(log.Topics[2].Bytes()),
		Value: value,
		Raw:   log,
	}, nil
}

// AddressTopic renders an address as a 32-byte log topic for use in
// filter queries over indexed address fields.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
