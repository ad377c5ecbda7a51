package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const productInfoABIJSON = `[
  {"type":"function","name":"products","stateMutability":"view",
   "inputs":[{"name":"productId","type":"uint256"}],
   "outputs":[
     {"name":"productType","type":"uint8"},
     {"name":"productId","type":"uint256"},
     {"name":"uri","type":"string"},
     {"name":"quantity","type":"uint256"},
     {"name":"price","type":"uint256"},
     {"name":"maxQuantity","type":"uint256"},
     {"name":"maxPrice","type":"uint256"},
     {"name":"token","type":"address"},
     {"name":"status","type":"uint8"},
     {"name":"priceDuration","type":"uint256"}]},
  {"type":"function","name":"getDiscountRules","stateMutability":"view",
   "inputs":[{"name":"productId","type":"uint256"}],
   "outputs":[{"name":"rules","type":"tuple[]","components":[
     {"name":"id","type":"uint256"},
     {"name":"discountApplication","type":"uint8"},
     {"name":"startTime","type":"uint256"},
     {"name":"endTime","type":"uint256"},
     {"name":"minDuration","type":"uint256"},
     {"name":"discountPercentage","type":"uint256"},
     {"name":"fixedPrice","type":"uint256"}]}]},
  {"type":"function","name":"buy","stateMutability":"nonpayable",
   "inputs":[
     {"name":"productId","type":"uint256"},
     {"name":"quantity","type":"uint256"},
     {"name":"amountIn","type":"uint256"},
     {"name":"to","type":"address"}],"outputs":[]},
  {"type":"function","name":"buyEth","stateMutability":"payable",
   "inputs":[
     {"name":"productId","type":"uint256"},
     {"name":"quantity","type":"uint256"},
     {"name":"to","type":"address"}],"outputs":[]},
  {"type":"function","name":"donate","stateMutability":"nonpayable",
   "inputs":[
     {"name":"donor","type":"address"},
     {"name":"donee","type":"address"},
     {"name":"productId","type":"uint256"},
     {"name":"amountIn","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"donateEth","stateMutability":"payable",
   "inputs":[
     {"name":"donor","type":"address"},
     {"name":"donee","type":"address"},
     {"name":"productId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"subscribe","stateMutability":"payable",
   "inputs":[
     {"name":"to","type":"address"},
     {"name":"referrer","type":"address"},
     {"name":"productId","type":"uint256"},
     {"name":"startTime","type":"uint256"},
     {"name":"duration","type":"uint256"},
     {"name":"discountRuleId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"renewSubscription","stateMutability":"payable",
   "inputs":[
     {"name":"to","type":"address"},
     {"name":"productId","type":"uint256"},
     {"name":"duration","type":"uint256"},
     {"name":"discountRuleId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"newProduct","stateMutability":"nonpayable",
   "inputs":[
     {"name":"productType","type":"uint8"},
     {"name":"uri","type":"string"},
     {"name":"quantity","type":"uint256"},
     {"name":"maxQuantity","type":"uint256"},
     {"name":"maxPrice","type":"uint256"},
     {"name":"price","type":"uint256"},
     {"name":"token","type":"address"}],
   "outputs":[{"name":"productId","type":"uint256"}]},
  {"type":"event","name":"NewProduct","anonymous":false,
   "inputs":[
     {"name":"productId","type":"uint256","indexed":true},
     {"name":"owner","type":"address","indexed":true}]},
  {"type":"event","name":"Buy","anonymous":false,
   "inputs":[
     {"name":"sender","type":"address","indexed":true},
     {"name":"recipient","type":"address","indexed":true},
     {"name":"productId","type":"uint256","indexed":true},
     {"name":"quantity","type":"uint256","indexed":false},
     {"name":"amountIn","type":"uint256","indexed":false}]}
]`

const proxyABIJSON = `[
  {"type":"function","name":"tokenIn","stateMutability":"nonpayable",
   "inputs":[
     {"name":"target","type":"address"},
     {"name":"tokensIn","type":"tuple","components":[
       {"name":"token","type":"address"},
       {"name":"amount","type":"uint256"},
       {"name":"directTransfer","type":"bool"},
       {"name":"commissions","type":"tuple[]","components":[
         {"name":"to","type":"address"},
         {"name":"amount","type":"uint256"}]}]},
     {"name":"data","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"ethIn","stateMutability":"payable",
   "inputs":[
     {"name":"target","type":"address"},
     {"name":"commissions","type":"tuple[]","components":[
       {"name":"to","type":"address"},
       {"name":"amount","type":"uint256"}]},
     {"name":"data","type":"bytes"}],"outputs":[]}
]`

const erc20ABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"symbol","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"name","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const trollNFTABIJSON = `[
  {"type":"function","name":"cap","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"minimumStake","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"stakeToken","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"stake","stateMutability":"payable",
   "inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}
]`

var (
	productInfoABI = mustParseABI("ProductInfo", productInfoABIJSON)
	proxyABI       = mustParseABI("Proxy", proxyABIJSON)
	erc20ABI       = mustParseABI("ERC20", erc20ABIJSON)
	trollNFTABI    = mustParseABI("TrollNFT", trollNFTABIJSON)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("contracts: parse %s abi: %v", name, err))
	}
	return parsed
}

// ProductInfoABI returns the parsed product contract ABI.
func ProductInfoABI() abi.ABI { return productInfoABI }

// ProxyABI returns the parsed commission proxy ABI.
func ProxyABI() abi.ABI { return proxyABI }

// ERC20ABI returns the parsed ERC20 ABI.
func ERC20ABI() abi.ABI { return erc20ABI }

// TrollNFTABI returns the parsed stake-to-mint NFT ABI.
func TrollNFTABI() abi.ABI { return trollNFTABI }
