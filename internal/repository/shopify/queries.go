package shopify

// eligibleOrdersQuery narrows retrieval to paid orders with a return in
// flight.
const eligibleOrdersQuery = `
financial_status:PAID OR
financial_status:PARTIALLY_PAID OR
financial_status:PARTIALLY_REFUNDED AND
(return_status:RETURNED OR return_status:IN_PROGRESS)
`

const returnOrdersQuery = `
query ($first: Int, $after: String, $query: String) {
  orders(first: $first, after: $after, query: $query) {
    pageInfo {
      hasNextPage
      endCursor
    }
    edges {
      node {
        id
        name
        tags
        totalPriceSet {
          presentmentMoney {
            amount
            currencyCode
          }
        }
        totalShippingPriceSet {
          presentmentMoney {
            amount
            currencyCode
          }
        }
        totalRefundedShippingSet {
          presentmentMoney {
            amount
            currencyCode
          }
        }
        lineItems(first: 50) {
          nodes {
            id
            quantity
            refundableQuantity
            originalTotalSet {
              presentmentMoney {
                amount
              }
            }
            discountAllocations {
              allocatedAmountSet {
                presentmentMoney {
                  amount
                }
              }
            }
            taxLines {
              title
              priceSet {
                presentmentMoney {
                  amount
                }
              }
            }
          }
        }
        refunds(first: 50) {
          id
          createdAt
          totalRefundedSet {
            presentmentMoney {
              amount
            }
          }
        }
        disputes {
          id
          status
          initiatedAs
        }
        returns(first: 20) {
          nodes {
            id
            name
            status
            returnLineItems(first: 50) {
              nodes {
                ... on ReturnLineItem {
                  quantity
                  refundableQuantity
                  fulfillmentLineItem {
                    lineItem {
                      id
                    }
                  }
                }
              }
            }
            reverseFulfillmentOrders(first: 5) {
              nodes {
                reverseDeliveries(first: 5) {
                  nodes {
                    id
                    deliverable {
                      ... on ReverseDeliveryShippingDeliverable {
                        tracking {
                          carrierName
                          number
                        }
                      }
                    }
                  }
                }
              }
            }
          }
        }
        suggestedRefund(refundShipping: true) {
          amountSet {
            presentmentMoney {
              amount
            }
          }
          shipping {
            amountSet {
              presentmentMoney {
                amount
              }
            }
          }
          suggestedTransactions {
            gateway
            kind
            amountSet {
              presentmentMoney {
                amount
              }
            }
            parentTransaction {
              id
            }
          }
        }
      }
    }
  }
}
`

const refundCreateMutation = `
mutation RefundLineItem($input: RefundInput!) {
  refundCreate(input: $input) {
    refund {
      id
      note
      createdAt
      totalRefundedSet {
        presentmentMoney {
          amount
          currencyCode
        }
      }
    }
    userErrors {
      field
      message
    }
  }
}
`

const returnCloseMutation = `
mutation ReturnClose($returnId: ID!) {
  returnClose(id: $returnId) {
    return {
      id
      status
    }
    userErrors {
      field
      message
    }
  }
}
`
