package auction_graphql_client

const (
	// Default endpoints of the auction server
	DefaultHTTPURL = "http://localhost:8080"
	DefaultWSURL   = "ws://localhost:8080/query"

	// GraphQL endpoint path, relative to the HTTP base URL
	QueryEndpoint = "/query"

	// Subscription subprotocol spoken by graphql-ws clients
	GraphQLTransportWSProtocol = "graphql-transport-ws"
)

const auctionFields = `
      id
      startingBid
      currentBid
      currentWinner
      duration
      extendedBidding
      status
      nextBid
      timeRemaining`

// CreateAuctionMutation creates a new auction
const CreateAuctionMutation = `
  mutation CreateAuction($startingBid: Float!, $duration: Int, $extendedBidding: Boolean) {
    createAuction(startingBid: $startingBid, duration: $duration, extendedBidding: $extendedBidding) {` + auctionFields + `
    }
  }`

// PlaceBidMutation places a bid on the current auction
const PlaceBidMutation = `
  mutation PlaceBid($userId: String!, $amount: Float!) {
    placeBid(userId: $userId, amount: $amount) {
      id
      userId
      amount
      timestamp
    }
  }`

// CurrentAuctionQuery fetches the current auction, null when none exists
const CurrentAuctionQuery = `
  query GetCurrentAuction {
    currentAuction {` + auctionFields + `
    }
  }`

// AuctionEventsSubscription streams auction events
const AuctionEventsSubscription = `
  subscription AuctionEvents {
    auctionEvents {
      type
      auction {
        id
        currentBid
        currentWinner
        status
        nextBid
        timeRemaining
      }
      bid {
        id
        userId
        amount
        timestamp
      }
      error
    }
  }`
