package birdweather

const detectionsQuery = `
query detections($period: InputDuration, $stationIds: [ID!], $speciesIds: [ID!], $first: Int, $after: String) {
  detections(period: $period, stationIds: $stationIds, speciesIds: $speciesIds, first: $first, after: $after) {
    edges {
      node {
        confidence
        probability
        score
        timestamp
        soundscape { url }
        species { id }
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
    totalCount
  }
}`

const topSpeciesQuery = `
query topSpecies($period: InputDuration, $stationIds: [ID!], $speciesId: ID, $limit: Int) {
  topSpecies(period: $period, stationIds: $stationIds, speciesId: $speciesId, limit: $limit) {
    count
    speciesId
    averageProbability
    species {
      id
      commonName
      scientificName
    }
  }
}`

const speciesQuery = `
query species($id: ID!) {
  species(id: $id) {
    id
    birdweatherUrl
    color
    commonName
    ebirdUrl
    imageUrl
    scientificName
    thumbnailUrl
    wikipediaSummary
    wikipediaUrl
  }
}`

const dailyDetectionCountsQuery = `
query dailyDetectionCounts($period: InputDuration, $stationIds: [ID!], $speciesIds: [ID!]) {
  dailyDetectionCounts(period: $period, stationIds: $stationIds, speciesIds: $speciesIds) {
    date
    total
  }
}`

const stationQuery = `
query station($id: ID!) {
  station(id: $id) {
    id
    name
    location
    timezone
    coords {
      lat
      lon
    }
  }
}`
